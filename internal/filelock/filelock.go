// Package filelock provides advisory file locks shared by every housekeep
// process touching the same queue or tasks directory.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	lockFileMode = 0o600
	pollInterval = 5 * time.Millisecond
)

// errWouldBlock is returned by tryLockFile when another handle holds the lock.
var errWouldBlock = errors.New("lock held elsewhere")

// Lock acquires an exclusive lock on the file at path, creating it if
// needed, and waits as long as it takes. The returned function releases the
// lock.
func Lock(path string) (unlock func() error, err error) {
	return LockContext(context.Background(), path)
}

// LockContext is Lock bounded by ctx. When ctx ends first the error wraps
// ctx.Err().
func LockContext(ctx context.Context, path string) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFileMode) //nolint:gosec // lock file path from trusted source
	if err != nil {
		return nil, err
	}

	if err := acquire(ctx, f); err != nil {
		_ = f.Close()
		return nil, err
	}

	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}

func acquire(ctx context.Context, f *os.File) error {
	var ticker *time.Ticker
	for {
		err := tryLockFile(f)
		if !errors.Is(err, errWouldBlock) {
			return err
		}
		if ticker == nil {
			ticker = time.NewTicker(pollInterval)
			defer ticker.Stop()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for lock %s: %w", f.Name(), ctx.Err())
		case <-ticker.C:
		}
	}
}
