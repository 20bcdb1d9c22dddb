package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luispater/VertexBridge/internal/config"
	"github.com/luispater/VertexBridge/internal/watcher"
)

func TestWatcherReloadsOnConfigChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8086\n"), 0o644))

	var mu sync.Mutex
	var reloaded *config.Config
	w, err := watcher.NewWatcher(path, func(cfg *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = cfg
	})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("port: 9999\nkey: changed\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil && reloaded.Port == 9999 && reloaded.Key == "changed"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherKeepsRunningOnMalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8086\n"), 0o644))

	calls := 0
	var mu sync.Mutex
	w, err := watcher.NewWatcher(path, func(cfg *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// A broken write must not invoke the callback; the previous settings stay.
	require.NoError(t, os.WriteFile(path, []byte("port: [broken\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, calls)
}
