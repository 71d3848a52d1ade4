package tilestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/terramesh/internal/logger"
)

// Lock errors.
var (
	ErrLockTimeout  = errors.New("lock timeout")
	ErrLockNotOwned = errors.New("lock marker not owned")
)

// LockSuffix is appended to a target path to form its marker file.
const LockSuffix = ".lock"

// DefaultRetryInterval is the fixed delay between acquisition attempts.
const DefaultRetryInterval = time.Second

// Locker acquires exclusive marker-file locks. Markers are plain files, so
// the protocol works across machines sharing a network filesystem.
type Locker struct {
	RetryInterval time.Duration
	Timeout       time.Duration // 0 waits until ctx is done
}

// DefaultLocker retries every second and never gives up on its own.
func DefaultLocker() *Locker {
	return &Locker{RetryInterval: DefaultRetryInterval}
}

// Lock is a held marker. Release it exactly once.
type Lock struct {
	path  string
	token string
}

// Path returns the marker file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire creates target+".lock" exclusively, retrying at a fixed interval
// while another owner holds it.
func (lk *Locker) Acquire(ctx context.Context, target string) (*Lock, error) {
	if lk.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lk.Timeout)
		defer cancel()
	}
	interval := lk.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	l := &Lock{path: target + LockSuffix, token: uuid.NewString()}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := l.create()
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating lock %s: %w", l.path, err)
		}
		if attempt == 1 {
			logger.Debug("waiting for lock", zap.String("lock", l.path))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrLockTimeout, l.path, attempt, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Lock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(l.token); err != nil {
		f.Close()
		os.Remove(l.path)
		return err
	}
	return f.Close()
}

// Release deletes the marker. A marker whose token was replaced by another
// owner is left alone and reported as ErrLockNotOwned.
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	if !bytes.Equal(data, []byte(l.token)) {
		return fmt.Errorf("%w: %s", ErrLockNotOwned, l.path)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}

// WithLock runs fn while holding the lock on target. The lock is released on
// every return path and its failure is combined with the result of fn.
func (lk *Locker) WithLock(ctx context.Context, target string, fn func() error) (err error) {
	l, err := lk.Acquire(ctx, target)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, l.Release())
	}()
	return fn()
}
