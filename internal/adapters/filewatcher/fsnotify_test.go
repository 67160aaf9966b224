package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baiyu-ai/ragspace/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_EmitsEventForWatchedExtension(t *testing.T) {
	dir := t.TempDir()
	w, err := New(nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, path, ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for file event")
	}
}

func TestIsWatchedExtension(t *testing.T) {
	w := &Watcher{extensions: []string{".pdf", ".txt"}}
	assert.True(t, w.isWatchedExtension("/a/b/c.txt"))
	assert.True(t, w.isWatchedExtension("/a/b/c.PDF"))
	assert.False(t, w.isWatchedExtension("/a/b/c.exe"))
}

var _ ports.FileWatcher = (*Watcher)(nil)
