package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// DefaultDirName is the directory, next to each manifest, holding the
// recorded outputs.
const DefaultDirName = ".monobuild"

// FileStore keeps one JSON file per (project, stage) next to the project's
// manifest:
//
//	<project>/deployment/
//	  .monobuild/
//	    build.json
//	    test.json
type FileStore struct {
	repoRoot string
	dirName  string
	mu       sync.RWMutex
	logger   *slog.Logger
	now      func() time.Time
}

// NewFileStore creates a store rooted at the repository checkout.
func NewFileStore(repoRoot, dirName string) *FileStore {
	if dirName == "" {
		dirName = DefaultDirName
	}
	return &FileStore{repoRoot: repoRoot, dirName: dirName, logger: slog.Default(), now: time.Now}
}

// WithLogger sets the logger used for unreadable records.
func (fs *FileStore) WithLogger(logger *slog.Logger) *FileStore {
	if logger != nil {
		fs.logger = logger
	}
	return fs
}

// Path returns the file holding the output of p's stage s.
func (fs *FileStore) Path(p *project.Project, s stage.Stage) string {
	return filepath.Join(fs.repoRoot, filepath.FromSlash(p.ManifestDir()), fs.dirName, s.String()+".json")
}

// LastOutput implements Lookup. Records that cannot be decoded are reported
// as NotFound so the stage is rebuilt.
func (fs *FileStore) LastOutput(ctx context.Context, p *project.Project, s stage.Stage) (Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path := fs.Path(p, s)
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from the loaded project
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NotFound{}, nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryArtifact, "read output").
			WithContext("path", path).Build()
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		fs.logger.Warn("Ignoring unreadable output record",
			logfields.Project(p.Name), logfields.Stage(s.String()), logfields.Path(path), logfields.Error(err))
		return NotFound{}, nil
	}
	return rec.output(), nil
}

// Record implements Store. The file is replaced atomically.
func (fs *FileStore) Record(ctx context.Context, p *project.Project, s stage.Stage, out Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.Path(p, s)
	rec, ok := toRecord(out, fs.now())
	if !ok {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ferrors.WrapError(err, ferrors.CategoryArtifact, "clear output").
				WithContext("path", path).Build()
		}
		return nil
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("path", filepath.Dir(path)).Build()
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryArtifact, "write output").
			WithContext("path", tmp).Build()
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return ferrors.WrapError(err, ferrors.CategoryArtifact, "commit output").
			WithContext("path", path).Build()
	}
	return nil
}

// Close implements Store.
func (fs *FileStore) Close() error { return nil }
