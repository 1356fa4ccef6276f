package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLockAcquireRelease(t *testing.T) {
	lock := NewIndexLock(t.TempDir())

	require.NoError(t, lock.Lock())
	assert.True(t, lock.IsLocked())

	require.NoError(t, lock.Unlock())
	assert.False(t, lock.IsLocked())

	// Double unlock is safe.
	require.NoError(t, lock.Unlock())
}

func TestIndexLockTryLock(t *testing.T) {
	dir := t.TempDir()

	first := NewIndexLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = first.Unlock() }()

	assert.Contains(t, first.Path(), ".index.lock")
}
