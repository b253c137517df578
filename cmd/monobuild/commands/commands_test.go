package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/monobuild/internal/config"
	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/run"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	helpers "git.home.luguber.info/inful/monobuild/internal/testutil/testutils"
)

const apiManifest = `name: api
stages:
  build:
    step: Shell
    command: echo building api
  test:
    step: Shell
    command: "true"
`

const webManifest = `name: web
stages:
  build:
    step: Shell
    command: exit 3
`

// setupMonorepo creates a repository with api and web on main and a feature
// branch that changed api only. It returns the repository root and the path
// of a config file pointing at it.
func setupMonorepo(t *testing.T) (string, string) {
	t.Helper()
	repo, _, root := helpers.SetupTestGitRepo(t)
	helpers.CommitFiles(t, repo, root, "initial", map[string]string{
		"api/deployment/project.yml": apiManifest,
		"api/main.go":                "package main",
		"web/deployment/project.yml": webManifest,
		"web/index.ts":               "export {}",
	})
	helpers.CheckoutBranch(t, repo, "feature", true)
	helpers.CommitFiles(t, repo, root, "change api", map[string]string{
		"api/main.go": "package main // v2",
	})

	cfgPath := filepath.Join(t.TempDir(), "monobuild.yaml")
	cfg := "repository:\n  path: " + root + "\nmetrics:\n  textfile: .monobuild/metrics.prom\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return root, cfgPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("monobuild"), kong.Exit(func(code int) {
		t.Fatalf("unexpected exit %d", code)
	}))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)

	var out bytes.Buffer
	g := &Global{Logger: slog.Default(), Out: &out, Err: io.Discard}
	err = kctx.Run(g, &cli)
	return out.String(), err
}

func planJSON(t *testing.T, args ...string) *run.Result {
	t.Helper()
	out, err := runCLI(t, append(args, "--format", "json")...)
	require.NoError(t, err)
	var res run.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return &res
}

func stepNames(res *run.Result, s stage.Stage) []string {
	sr, ok := res.Stage(s)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(sr.Steps))
	for _, step := range sr.Steps {
		names = append(names, step.Project)
	}
	return names
}

func TestPlanOnFeatureBranch(t *testing.T) {
	_, cfg := setupMonorepo(t)

	res := planJSON(t, "-c", cfg, "plan")
	assert.True(t, res.DryRun)
	assert.Equal(t, "feature", res.Branch)
	assert.Equal(t, []string{"api"}, stepNames(res, stage.Build))
	assert.Equal(t, []string{"api"}, stepNames(res, stage.Test))
	assert.Empty(t, stepNames(res, stage.Deploy))

	sr, ok := res.Stage(stage.Build)
	require.True(t, ok)
	assert.Equal(t, run.StatusPlanned, sr.Steps[0].Status)
	assert.Equal(t, []string{"api/main.go"}, sr.Steps[0].ChangedFiles)
}

func TestPlanSelectors(t *testing.T) {
	_, cfg := setupMonorepo(t)

	all := planJSON(t, "-c", cfg, "plan", "--all")
	assert.Equal(t, []string{"api", "web"}, stepNames(all, stage.Build))

	onlyTest := planJSON(t, "-c", cfg, "plan", "--all", "--stage", "test")
	require.Len(t, onlyTest.Stages, 1)
	assert.Equal(t, stage.Test, onlyTest.Stages[0].Stage)

	web := planJSON(t, "-c", cfg, "plan", "--projects", "web")
	assert.Equal(t, []string{"web"}, stepNames(web, stage.Build))
	assert.Empty(t, stepNames(web, stage.Test))
}

func TestPlanUnknownProject(t *testing.T) {
	_, cfg := setupMonorepo(t)

	out, err := runCLI(t, "-c", cfg, "plan", "--projects", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "unknown projects: [ghost]")

	_, err = runCLI(t, "-c", cfg, "plan", "--projects", "ghost", "--strict")
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryConfig, ce.Category())
}

func TestRunRecordsOutputs(t *testing.T) {
	root, cfg := setupMonorepo(t)

	out, err := runCLI(t, "-c", cfg, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")

	helpers.NewRepoAssertions(t, root).
		AssertOutputRecorded("api/deployment", ".monobuild", "build").
		AssertOutputRecorded("api/deployment", ".monobuild", "test").
		AssertFileMissing("web/deployment/.monobuild/build.json").
		AssertFileContains(".monobuild/metrics.prom", "monobuild_step_results_total")

	again := planJSON(t, "-c", cfg, "plan")
	assert.True(t, again.IsEmpty(), "recorded outputs at HEAD leave nothing to do")

	status, err := runCLI(t, "-c", cfg, "status")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(status), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "succeeded at")
	assert.Contains(t, lines[2], "never run")
}

func TestRunFailureIsStepError(t *testing.T) {
	_, cfg := setupMonorepo(t)

	out, err := runCLI(t, "-c", cfg, "run", "--projects", "web", "--format", "markdown")
	require.Error(t, err)
	assert.Contains(t, out, "~~web~~")
	assert.Equal(t, 11, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))

	status, err := runCLI(t, "-c", cfg, "status", "web")
	require.NoError(t, err)
	assert.Contains(t, status, "failed")
}

func TestRunDryRunRecordsNothing(t *testing.T) {
	root, cfg := setupMonorepo(t)

	res := planJSON(t, "-c", cfg, "run", "--dry-run")
	assert.True(t, res.DryRun)
	helpers.NewRepoAssertions(t, root).AssertFileMissing("api/deployment/.monobuild/build.json")
}

func TestReportToFile(t *testing.T) {
	_, cfg := setupMonorepo(t)
	dir := t.TempDir()

	out, err := runCLI(t, "-c", cfg, "plan", "--format", "html", "--report", filepath.Join(dir, "plan.html"))
	require.NoError(t, err)
	assert.Empty(t, out)
	helpers.NewRepoAssertions(t, dir).AssertFileContains("plan.html", "<em>api</em>")
}

func TestProjectsCommands(t *testing.T) {
	_, cfg := setupMonorepo(t)

	list, err := runCLI(t, "-c", cfg, "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, list, "api/")
	assert.Contains(t, list, "build,test")

	testers, err := runCLI(t, "-c", cfg, "projects", "list", "--stage", "test")
	require.NoError(t, err)
	assert.NotContains(t, testers, "web")

	show, err := runCLI(t, "-c", cfg, "projects", "show", "api")
	require.NoError(t, err)
	assert.Contains(t, show, "Root:        api/")
	assert.Contains(t, show, "build: Shell (echo building api)")

	_, err = runCLI(t, "-c", cfg, "projects", "show", "ghost")
	require.Error(t, err)

	lint, err := runCLI(t, "-c", cfg, "projects", "lint")
	require.NoError(t, err)
	assert.Contains(t, lint, "2 projects OK")
}

func TestInitAndVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monobuild.yaml")

	out, err := runCLI(t, "-c", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")
	helpers.NewRepoAssertions(t, filepath.Dir(path)).AssertFileContains("monobuild.yaml", "main_branch: main")

	_, err = runCLI(t, "-c", path, "init")
	require.Error(t, err)
	_, err = runCLI(t, "-c", path, "init", "--force")
	require.NoError(t, err)

	version, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(version, "monobuild "))
}

func TestSetupLoggingHonoursEnv(t *testing.T) {
	t.Setenv(LogLevelEnv, "error")
	logger := setupLogging(false, config.Default().Logging)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelWarn))

	logger = setupLogging(true, config.Default().Logging)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestSQLiteFootprint(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "work", "app")
	tests := []struct {
		name string
		db   string
		want storeFootprint
	}{
		{"in repository root", filepath.Join(root, "outputs.db"), storeFootprint{Path: "outputs.db"}},
		{"in subdirectory", filepath.Join(root, ".monobuild", "outputs.db"), storeFootprint{Path: ".monobuild"}},
		{"nested subdirectory", filepath.Join(root, "var", "state", "o.db"), storeFootprint{Path: "var/state"}},
		{"in parent", filepath.Join(root, "..", "o.db"), storeFootprint{}},
		{"outside", filepath.Join(string(filepath.Separator), "tmp", "o.db"), storeFootprint{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteFootprint(root, tt.db))
		})
	}
}

// A sqlite database at the repository root must not hide projects whose
// directories share the repository's name.
func TestSQLiteStoreAtRootKeepsSameNamedProjects(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	repo, _, root := helpers.SetupTestGitRepoAt(t, root)
	helpers.CommitFiles(t, repo, root, "initial", map[string]string{
		"services/app/deployment/project.yml": strings.Replace(apiManifest, "name: api", "name: app", 1),
		"services/app/main.go":                "package main",
	})
	helpers.CheckoutBranch(t, repo, "feature", true)
	helpers.WriteFile(t, root, "services/app/main.go", "package main // wip")

	cfgPath := filepath.Join(t.TempDir(), "monobuild.yaml")
	cfg := "repository:\n  path: " + root + "\n  include_local_changes: true\n" +
		"artifacts:\n  backend: sqlite\n  path: outputs.db\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	list, err := runCLI(t, "-c", cfgPath, "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, list, "services/app/")

	res := planJSON(t, "-c", cfgPath, "plan")
	assert.Equal(t, []string{"app"}, stepNames(res, stage.Build))
	sr, ok := res.Stage(stage.Build)
	require.True(t, ok)
	assert.Equal(t, []string{"services/app/main.go"}, sr.Steps[0].ChangedFiles)
}
