package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherFiresAfterQuietWindow(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int64
	w, err := New(dir, 50*time.Millisecond, func(context.Context) {
		fired.Add(1)
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("one"), 0o644))

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int64
	w, err := New(dir, 150*time.Millisecond, func(context.Context) {
		fired.Add(1)
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte{byte(i)}, 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	// The burst fits inside one window; give a second flush a chance
	// to (wrongly) happen before asserting it did not.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(1), fired.Load())
}

func TestWatcherCoversNewSubdirectories(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int64
	w, err := New(dir, 50*time.Millisecond, func(context.Context) {
		fired.Add(1)
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(dir, "guides")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	before := fired.Load()
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.md"), []byte("new"), 0o644))
	require.Eventually(t, func() bool {
		return fired.Load() > before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), 0, func(context.Context) {}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
