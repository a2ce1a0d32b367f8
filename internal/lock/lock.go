// Package lock collapses concurrent top-ups of the same category, either
// within one process or across replicas sharing a Redis server.
package lock

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Locker runs fn for key unless another caller is already running it.
// ran is false when the call waited on someone else's run instead.
type Locker interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) (ran bool, err error)
}

// LocalLocker collapses concurrent calls within the process. Waiters
// receive the error of the run they waited on.
type LocalLocker struct {
	group singleflight.Group
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) Do(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	ran := false
	_, err, _ := l.group.Do(key, func() (any, error) {
		ran = true
		return nil, fn(ctx)
	})
	return ran, err
}

// Nop runs every call. It keeps the accepted over-fetch behaviour of
// unguarded top-ups.
type Nop struct{}

func (Nop) Do(ctx context.Context, _ string, fn func(ctx context.Context) error) (bool, error) {
	return true, fn(ctx)
}
