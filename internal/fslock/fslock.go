// Package fslock provides cross-process exclusive locks on lock files.
package fslock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when the lock is still held by someone else at the deadline.
var ErrLocked = errors.New("lock held by another process")

const retryDelay = 200 * time.Millisecond

// Acquire obtains an exclusive lock on path, retrying until timeout or ctx is done.
// The returned release function is safe to call more than once.
func Acquire(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return func() {}, fmt.Errorf("create lock directory: %w", err)
	}

	l := flock.New(path)
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := l.TryLockContext(lockCtx, retryDelay)
	switch {
	case locked:
		return func() { _ = l.Unlock() }, nil
	case ctx.Err() != nil:
		return func() {}, ctx.Err()
	case err == nil || errors.Is(err, context.DeadlineExceeded):
		return func() {}, fmt.Errorf("%w (lock: %s)", ErrLocked, path)
	default:
		return func() {}, fmt.Errorf("cannot acquire lock %s: %w", path, err)
	}
}
