package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string, ignore ...string) <-chan []string {
	t.Helper()
	calls := make(chan []string, 8)
	w, err := New(root, 50*time.Millisecond, func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	}, ignore...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not become ready")
	}
	return calls
}

func waitCall(t *testing.T, calls <-chan []string) []string {
	t.Helper()
	select {
	case c := <-calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
		return nil
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "svc", "api"), 0o750))
	calls := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "svc", "api", "main.go"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("b"), 0o600))

	changed := waitCall(t, calls)
	assert.Contains(t, changed, "svc/api/main.go")
	assert.Contains(t, changed, "README.md")
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	calls := startWatcher(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "web"), 0o750))
	waitCall(t, calls)

	require.NoError(t, os.WriteFile(filepath.Join(root, "web", "index.ts"), []byte("x"), 0o600))
	assert.Contains(t, waitCall(t, calls), "web/index.ts")
}

func TestWatcherSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "api", ".monobuild"), 0o750))
	calls := startWatcher(t, root, ".monobuild")

	require.NoError(t, os.WriteFile(filepath.Join(root, "api", ".monobuild", "build.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "api", "main.go"), []byte("x"), 0o600))

	changed := waitCall(t, calls)
	assert.Equal(t, []string{"api/main.go"}, changed)
}

func TestNewValidates(t *testing.T) {
	_, err := New(t.TempDir(), time.Second, nil)
	require.Error(t, err)

	_, err = New(t.TempDir(), 0, func(context.Context, []string) error { return nil })
	require.Error(t, err)
}

func TestRelevant(t *testing.T) {
	w, err := New("/repo", time.Second, func(context.Context, []string) error { return nil }, "node_modules")
	require.NoError(t, err)

	rel, ok := w.relevant("/repo/a/b.go")
	assert.True(t, ok)
	assert.Equal(t, "a/b.go", rel)

	_, ok = w.relevant("/repo/.git/index")
	assert.False(t, ok)
	_, ok = w.relevant("/repo/web/node_modules/x.js")
	assert.False(t, ok)
	_, ok = w.relevant("/elsewhere/file")
	assert.False(t, ok)

	w.WithIgnoredPaths("state")
	_, ok = w.relevant("/repo/state/outputs.db")
	assert.False(t, ok)
	rel, ok = w.relevant("/repo/svc/state/main.go")
	assert.True(t, ok)
	assert.Equal(t, "svc/state/main.go", rel)
}
