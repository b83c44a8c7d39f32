package capture

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prathameshworks247/AGILITY/internal/config"
)

func TestWatcherCollapsesBurstIntoOneSave(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, ".git"), 0o755))

	w, err := NewWatcher(f.agent, config.NewExtensionIndex(nil), 100*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	path := filepath.Join(f.dir, "main.go")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, ".git", "index.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.unknown"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(f.sender.sent()) >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	f.agent.Wait()

	calls := f.sender.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, path, calls[0].snapshot.FilePath)
	assert.Equal(t, "go", calls[0].snapshot.LanguageID)
	assert.Equal(t, "package main\n", calls[0].snapshot.Content)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	f := newFixture(t, nil)
	w, err := NewWatcher(f.agent, nil, 50*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(f.dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(sub, "x.py"), []byte("print(1)\n"), 0o644)
		return len(f.sender.sent()) >= 1
	}, 3*time.Second, 100*time.Millisecond)
	f.agent.Wait()
	assert.Equal(t, "python", f.sender.sent()[0].snapshot.LanguageID)
}

func TestIgnoredPath(t *testing.T) {
	assert.True(t, ignoredPath(filepath.Join("/w", ".git", "HEAD")))
	assert.True(t, ignoredPath(filepath.Join("/w", "web", "node_modules", "a", "b.js")))
	assert.False(t, ignoredPath(filepath.Join("/w", "src", "main.go")))
}

func TestFileQueueRunsKeysIndependently(t *testing.T) {
	q := newFileQueue()
	block := make(chan struct{})
	var mu sync.Mutex
	var order []string

	q.enqueue("a", func() { <-block })
	q.enqueue("a", func() {
		mu.Lock()
		order = append(order, "a2")
		mu.Unlock()
	})
	done := make(chan struct{})
	q.enqueue("b", func() {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key b waited on key a")
	}
	close(block)
	q.wait()
	assert.Equal(t, []string{"b", "a2"}, order)
}
