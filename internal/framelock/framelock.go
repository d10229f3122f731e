// Package framelock serializes mutations to a single frame, either within
// one process or across processes sharing a Redis instance.
package framelock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrLockTimeout     = errors.New("timed out waiting for frame lock")
	ErrLockUnavailable = errors.New("frame lock backend unavailable")
)

// Release gives a held lock back.
type Release func() error

// Locker grants exclusive access to a key.
type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
	Close() error
}

// Open returns a RedisLocker when redisURL is set, else a LocalLocker.
func Open(redisURL string, ttl, wait time.Duration, logger *zap.Logger) (Locker, error) {
	if redisURL == "" {
		return NewLocalLocker(wait), nil
	}
	l, err := NewRedisLockerFromURL(redisURL, ttl, wait, logger)
	if err != nil {
		return nil, fmt.Errorf("open redis locker: %w", err)
	}
	return l, nil
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once
// nobody holds or waits on them.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker. wait bounds how long Lock blocks;
// zero waits until ctx is done.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, locks: make(map[string]*localEntry)}
}

// Lock blocks until key is free, the wait elapses or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-e.sem
			l.drop(key, e)
		})
		return nil
	}, nil
}

func (l *LocalLocker) drop(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Close is a no-op.
func (l *LocalLocker) Close() error { return nil }
