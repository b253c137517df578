package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

func testProject(name string) *project.Project {
	return &project.Project{
		Name:         name,
		ManifestPath: name + "/deployment/project.yml",
		RootPath:     name + "/",
		Stages: map[stage.Stage]*project.StageConfig{
			stage.Build: {Step: "make"},
			stage.Test:  {Step: "make"},
		},
	}
}

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	p := testProject("alpha")

	out, err := store.LastOutput(ctx, p, stage.Build)
	require.NoError(t, err)
	assert.Equal(t, NotFound{}, out)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	art := &Artifact{Revision: "abc123", Type: TypeDockerImage, Spec: map[string]string{"image": "alpha:abc123"}}
	require.NoError(t, store.Record(ctx, p, stage.Build, Succeeded{Message: "built", Artifact: art, RecordedAt: at}))

	out, err = store.LastOutput(ctx, p, stage.Build)
	require.NoError(t, err)
	got, ok := out.(Succeeded)
	require.True(t, ok, "expected Succeeded, got %T", out)
	assert.Equal(t, "built", got.Message)
	require.NotNil(t, got.Artifact)
	assert.Equal(t, *art, *got.Artifact)
	assert.True(t, at.Equal(got.RecordedAt))

	// Other stages are untouched.
	out, err = store.LastOutput(ctx, p, stage.Test)
	require.NoError(t, err)
	assert.Equal(t, NotFound{}, out)

	require.NoError(t, store.Record(ctx, p, stage.Build, Failed{Message: "exit status 2", RecordedAt: at}))
	out, err = store.LastOutput(ctx, p, stage.Build)
	require.NoError(t, err)
	assert.IsType(t, Failed{}, out)
	_, trusted := TrustedRevision(out)
	assert.False(t, trusted)

	require.NoError(t, store.Record(ctx, p, stage.Build, NotFound{}))
	out, err = store.LastOutput(ctx, p, stage.Build)
	require.NoError(t, err)
	assert.Equal(t, NotFound{}, out)

	require.NoError(t, store.Close())
}

func TestFileStore(t *testing.T) {
	storeContract(t, NewFileStore(t.TempDir(), ""))
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	storeContract(t, store)
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outputs.db")
	p := testProject("alpha")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, p, stage.Test, Succeeded{Artifact: &Artifact{Revision: "r1", Type: TypeJUnitTests}}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	out, err := store.LastOutput(ctx, p, stage.Test)
	require.NoError(t, err)
	rev, ok := TrustedRevision(out)
	require.True(t, ok)
	assert.Equal(t, "r1", rev)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStoreLayout(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, "")
	p := testProject("alpha")

	require.NoError(t, store.Record(context.Background(), p, stage.Build, Succeeded{Artifact: &Artifact{Revision: "r1"}}))
	assert.FileExists(t, filepath.Join(root, "alpha", "deployment", ".monobuild", "build.json"))
	assert.Equal(t, filepath.Join(root, "alpha", "deployment", ".monobuild", "test.json"), store.Path(p, stage.Test))
}

func TestFileStoreCorruptRecordIsNotFound(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, "")
	p := testProject("alpha")

	path := store.Path(p, stage.Build)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	out, err := store.LastOutput(context.Background(), p, stage.Build)
	require.NoError(t, err)
	assert.Equal(t, NotFound{}, out)
}

func TestFileStoreReadErrorIsClassified(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, "")
	p := testProject("alpha")

	// A directory where the record file should be cannot be read.
	require.NoError(t, os.MkdirAll(store.Path(p, stage.Build), 0o750))

	_, err := store.LastOutput(context.Background(), p, stage.Build)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryArtifact))
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	alpha := testProject("alpha")
	beta := testProject("beta")
	delete(beta.Stages, stage.Test)

	mem := NewMemoryStore().
		Set("alpha", stage.Build, Succeeded{Artifact: &Artifact{Revision: "r1"}}).
		Set("beta", stage.Build, Failed{Message: "boom"})

	snap, err := TakeSnapshot(ctx, mem, []*project.Project{alpha, beta}, stage.All())
	require.NoError(t, err)
	// alpha: build + test, beta: build only.
	assert.Equal(t, 3, mem.Lookups())

	rev, ok := TrustedRevision(snap.Output(alpha, stage.Build))
	assert.True(t, ok)
	assert.Equal(t, "r1", rev)
	assert.IsType(t, Failed{}, snap.Output(beta, stage.Build))
	assert.Equal(t, NotFound{}, snap.Output(beta, stage.Test))
	assert.Equal(t, NotFound{}, snap.Output(alpha, stage.Deploy))

	var nilSnap *Snapshot
	assert.Equal(t, NotFound{}, nilSnap.Output(alpha, stage.Build))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "never run", Describe(NotFound{}))
	assert.Equal(t, "never run", Describe(nil))
	assert.Equal(t, "failed", Describe(Failed{}))
	assert.Equal(t, "failed: boom", Describe(Failed{Message: "boom"}))
	assert.Equal(t, "succeeded (no artifact)", Describe(Succeeded{}))
	assert.Equal(t, "succeeded at 0123abcd", Describe(Succeeded{Artifact: &Artifact{Revision: "0123abcdef99"}}))
}
