package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

// RunLock serializes mutating runs (manage, sync, copy) against one account. Two
// runs on the same key would interleave their requests and trip the vendor's
// per-key rate limit.
type RunLock struct {
	lock *flock.Flock
	path string
}

// NewRunLock creates a lock for the given API key. The key itself is never
// written to disk, only a short digest of it.
func NewRunLock(apiKey string) (*RunLock, error) {
	dir, err := GetLockDir()
	if err != nil {
		return nil, fmt.Errorf("could not resolve lock directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create lock directory %s: %w", dir, err)
	}
	sum := sha256.Sum256([]byte(apiKey))
	lockPath := filepath.Join(dir, hex.EncodeToString(sum[:6])+lockFileSuffix)
	return &RunLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the lock, waiting if necessary.
// It will print a message if it has to wait.
func (l *RunLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another nxsync process is modifying this account, waiting for it to finish...\n")
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// Path is the lock file location.
func (l *RunLock) Path() string { return l.path }

// GetLockDir resolves where lock files live. NXSYNC_LOCK_DIR overrides the default.
func GetLockDir() (string, error) {
	if dir := os.Getenv("NXSYNC_LOCK_DIR"); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nxsync"), nil
}
