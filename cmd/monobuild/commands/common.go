package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"git.home.luguber.info/inful/monobuild/internal/artifact"
	"git.home.luguber.info/inful/monobuild/internal/config"
	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/git"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/metrics"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/retry"
	"git.home.luguber.info/inful/monobuild/internal/run"
)

// LogLevelEnv overrides the configured log level.
const LogLevelEnv = "MONOBUILD_LOG_LEVEL"

// Global carries shared state into every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

// NewGlobal returns a Global writing to the process streams.
func NewGlobal() *Global {
	return &Global{Logger: slog.Default(), Out: os.Stdout, Err: os.Stderr}
}

// CLI definition & global flags.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"monobuild.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Plan     PlanCmd     `cmd:"" help:"Show which projects each stage would run"`
	Run      RunCmd      `cmd:"" help:"Run the invalidated projects stage by stage"`
	Projects ProjectsCmd `cmd:"" help:"Inspect and lint project manifests"`
	Status   StatusCmd   `cmd:"" help:"Show the last recorded output per project and stage"`
	Watch    WatchCmd    `cmd:"" help:"Re-plan whenever files in the repository change"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// AfterApply runs after flag parsing; set up logging before any command.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	setupLogging(c.Verbose, config.LoggingConfig{})
	return nil
}

// setupLogging installs the default slog handler. Precedence for the level:
// --verbose, then MONOBUILD_LOG_LEVEL, then the configuration.
func setupLogging(verbose bool, cfg config.LoggingConfig) *slog.Logger {
	level := cfg.Level.SlogLevel()
	if env := os.Getenv(LogLevelEnv); env != "" {
		level = config.NormalizeLogLevel(env).SlogLevel()
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// workspace bundles the collaborators built from configuration.
type workspace struct {
	cfg      *config.Config
	root     string
	loader   *project.FileLoader
	store    artifact.Store
	history  *git.HistorySource
	recorder *metrics.PrometheusRecorder
	logger   *slog.Logger
	footprint storeFootprint
}

// storeFootprint is where the output store writes inside the repository.
// History, manifest scanning and watch must not see these writes.
type storeFootprint struct {
	// DirName is matched at any depth; the file store writes next to every manifest.
	DirName string
	// Path is repository-relative and matched at one location only.
	Path string
}

// openWorkspace loads configuration and wires the store, loader and history
// source. Callers must Close the workspace.
func (c *CLI) openWorkspace(g *Global) (*workspace, error) {
	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, err
	}
	logger := setupLogging(c.Verbose, cfg.Logging)
	g.Logger = logger

	root, err := filepath.Abs(cfg.Repository.Path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve repository path").
			WithContext("path", cfg.Repository.Path).Build()
	}

	store, footprint, err := openStore(cfg, root, logger)
	if err != nil {
		return nil, err
	}

	ws := &workspace{
		cfg:  cfg,
		root: root,
		loader: project.NewFileLoader(root, cfg.Projects.ManifestNames, cfg.Projects.ManifestDir).
			WithExclude(cfg.Projects.Exclude...).
			WithExclude(footprint.names()...).
			WithExcludePaths(footprint.paths()...).
			WithLogger(logger),
		store: store,
		history: git.NewHistorySource(root, cfg.Repository.MainBranch).
			WithLocalChanges(cfg.Repository.IncludeLocalChanges).
			WithMaxCommits(cfg.Repository.MaxCommits).
			WithIgnoredDirs(footprint.names()...).
			WithIgnoredPaths(footprint.paths()...).
			WithLogger(logger),
		logger:    logger,
		footprint: footprint,
	}
	if cfg.Metrics.Textfile != "" {
		ws.recorder = metrics.NewPrometheusRecorder(nil)
	}
	return ws, nil
}

// openStore returns the configured output store and where it writes.
func openStore(cfg *config.Config, root string, logger *slog.Logger) (artifact.Store, storeFootprint, error) {
	switch cfg.Artifacts.Backend {
	case config.ArtifactBackendSQLite:
		dbPath := cfg.Artifacts.Path
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(root, dbPath)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, storeFootprint{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create artifact database directory").
				WithContext("path", dbPath).Build()
		}
		store, err := artifact.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, storeFootprint{}, err
		}
		logger.Debug("Using sqlite output store", logfields.Path(dbPath))
		return store, sqliteFootprint(root, dbPath), nil
	default:
		logger.Debug("Using file output store", slog.String("dir", cfg.Artifacts.Path))
		return artifact.NewFileStore(root, cfg.Artifacts.Path).WithLogger(logger),
			storeFootprint{DirName: cfg.Artifacts.Path}, nil
	}
}

// sqliteFootprint ignores the database directory when it is a strict
// subdirectory of root, the database file when it sits in root itself, and
// nothing when it lives outside the repository.
func sqliteFootprint(root, dbPath string) storeFootprint {
	dir, err := filepath.Rel(root, filepath.Dir(dbPath))
	if err != nil || dir == ".." || strings.HasPrefix(dir, ".."+string(filepath.Separator)) {
		return storeFootprint{}
	}
	if dir == "." {
		return storeFootprint{Path: filepath.ToSlash(filepath.Base(dbPath))}
	}
	return storeFootprint{Path: filepath.ToSlash(dir)}
}

func (f storeFootprint) names() []string {
	if f.DirName == "" {
		return nil
	}
	return []string{f.DirName}
}

func (f storeFootprint) paths() []string {
	if f.Path == "" {
		return nil
	}
	return []string{f.Path}
}

func (w *workspace) runner(stepOutput io.Writer) *run.Runner {
	executor := &run.ShellExecutor{
		RepoRoot: w.root,
		Shell:    w.cfg.Steps.Shell,
		Timeout:  w.cfg.StepTimeout(),
		Output:   stepOutput,
	}
	r := run.NewRunner(w.history, w.store, executor, func() (string, error) {
		return git.HeadHash(w.root)
	}).
		WithLogger(w.logger).
		WithRetryPolicy(retry.FromConfig(w.cfg.Steps.Retry))
	if w.recorder != nil {
		r = r.WithRecorder(w.recorder)
	}
	return r
}

// branch returns the explicit branch or the one checked out.
func (w *workspace) branch(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return git.CurrentBranch(w.root)
}

// Close releases the store and writes the metrics textfile when configured.
func (w *workspace) Close() error {
	var firstErr error
	if w.recorder != nil {
		path := w.cfg.Metrics.Textfile
		if !filepath.IsAbs(path) {
			path = filepath.Join(w.root, path)
		}
		if err := w.recorder.WriteTextfile(path); err != nil {
			w.logger.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
			firstErr = err
		}
	}
	if err := w.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func closeWorkspace(ws *workspace) {
	if err := ws.Close(); err != nil {
		ws.logger.Warn("Failed to close workspace", logfields.Error(err))
	}
}
