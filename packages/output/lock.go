package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockFileName = ".hitchain.lock"

var ErrDirLocked = errors.New("output directory is in use by another run")

// Lock takes an exclusive lock on dir, creating it if needed. The returned
// function releases the lock.
func Lock(ctx context.Context, dir string, wait time.Duration) (func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	if wait <= 0 {
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", dir, ErrDirLocked)
		}
		return lock.Unlock, nil
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrDirLocked)
	}
	return lock.Unlock, nil
}
