package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runWatcher(t *testing.T, root string) <-chan Batch {
	t.Helper()

	w, err := New(testLogger(), root, Options{SettleDelay: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan Batch, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(b Batch) { batches <- b })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return batches
}

func waitBatch(t *testing.T, batches <-chan Batch) Batch {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
		return Batch{}
	}
}

func TestWatcher_ReportsSettledWrites(t *testing.T) {
	root := t.TempDir()
	session := filepath.Join(root, "S01", "V1")
	require.NoError(t, os.MkdirAll(session, 0o755))

	batches := runWatcher(t, root)

	for _, name := range []string{"a.mp4", "b.mp4", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(session, name), []byte("x"), 0o600))
	}

	seen := map[string]bool{}
	for len(seen) < 3 {
		b := waitBatch(t, batches)
		assert.False(t, b.Last.Before(b.First))
		for _, e := range b.Events {
			switch name := filepath.Base(e.Path); name {
			case "a.mp4", "b.mp4", "c.png":
				seen[name] = true
			}
		}
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	batches := runWatcher(t, root)

	session := filepath.Join(root, "S02", "V1")
	require.NoError(t, os.MkdirAll(session, 0o755))
	waitBatch(t, batches)

	require.NoError(t, os.WriteFile(filepath.Join(session, "clip.mp4"), []byte("x"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case b := <-batches:
			for _, e := range b.Events {
				if filepath.Base(e.Path) == "clip.mp4" {
					return
				}
			}
		case <-deadline:
			t.Fatal("write in new directory never reported")
		}
	}
}

func TestNew_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := New(testLogger(), path, Options{})
	assert.Error(t, err)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{}
	opts.setDefaults()
	root := filepath.Join(string(filepath.Separator), "home", ".cache", "media")

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "S01", "V1", "a.mp4"), false},
		{filepath.Join(root, ".trash", "a.mp4"), true},
		{filepath.Join(root, "S01", ".DS_Store"), true},
		{filepath.Join(root, "S01", "upload.part"), true},
		{root, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, opts.shouldIgnore(root, tt.path))
		})
	}
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "created", EventCreated.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "unknown", EventType(42).String())
}
