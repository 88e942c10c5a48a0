package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
	appDir         = "adata"
)

// RunLock makes sure only one process runs a read-modify-write cycle against
// a given catalog at a time.
type RunLock struct {
	lock *flock.Flock
	path string
}

// NewRunLock creates a lock named after the catalog it protects.
func NewRunLock(name string) (*RunLock, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(dir, name+lockFileSuffix)
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
		Log.Warnf("Another adata run is updating the catalog, waiting for it to finish...")
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

// DataDir returns the application data directory, creating it if needed.
func DataDir() (string, error) {
	dir := filepath.Join(xdg.DataHome, appDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create data dir: %w", err)
	}
	return dir, nil
}

// GetAbsDBPath resolves the sqlite path, defaulting to the data directory.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dir, err := DataDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "adata.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
