package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// IndexLock provides cross-process locking for the index directory,
// preventing two writers from mutating the keyword and vector indexes
// at the same time. Works on Unix, macOS, and Windows.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates a lock for the given data directory. The lock
// file lives at <dir>/.index.lock.
func NewIndexLock(dir string) *IndexLock {
	lockPath := filepath.Join(dir, ".index.lock")
	return &IndexLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires an exclusive lock, blocking until available.
func (l *IndexLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking. Returns false
// when another process holds it.
func (l *IndexLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire index lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked IndexLock.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("release index lock: %w", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.path
}

// IsLocked reports whether this process holds the lock.
func (l *IndexLock) IsLocked() bool {
	return l.locked
}
