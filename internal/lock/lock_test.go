package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runConcurrently starts n callers that block in fn until release is closed.
func runConcurrently(t *testing.T, l Locker, n int) (runs int32, ranCount int32) {
	t.Helper()

	var (
		executed atomic.Int32
		ran      atomic.Int32
		started  = make(chan struct{})
		release  = make(chan struct{})
		wg       sync.WaitGroup
	)

	var once sync.Once
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Do(context.Background(), "paises", func(context.Context) error {
				executed.Add(1)
				once.Do(func() { close(started) })
				<-release
				return nil
			})
			assert.NoError(t, err)
			if ok {
				ran.Add(1)
			}
		}()
	}

	<-started
	// Give the others time to pile up behind the first run.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	return executed.Load(), ran.Load()
}

func TestLocalLockerCollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	executed, ran := runConcurrently(t, NewLocalLocker(), 8)
	assert.Equal(t, int32(1), executed)
	assert.Equal(t, int32(1), ran)
}

func TestLocalLockerSharesError(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	ran, err := l.Do(context.Background(), "k", func(context.Context) error {
		return assert.AnError
	})
	assert.True(t, ran)
	require.ErrorIs(t, err, assert.AnError)

	// Sequential calls each run.
	ran, err = l.Do(context.Background(), "k", func(context.Context) error { return nil })
	assert.True(t, ran)
	require.NoError(t, err)
}

func TestNopAlwaysRuns(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	for range 3 {
		ran, err := Nop{}.Do(context.Background(), "k", func(context.Context) error {
			calls.Add(1)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func newTestRedisLocker(t *testing.T) *RedisLocker {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	l := newRedisLocker(client, 5*time.Second)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRedisLockerCollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	executed, ran := runConcurrently(t, newTestRedisLocker(t), 4)
	assert.Equal(t, int32(1), executed)
	assert.Equal(t, int32(1), ran)
}

func TestRedisLockerReleasesAfterRun(t *testing.T) {
	t.Parallel()

	l := newTestRedisLocker(t)
	for range 2 {
		ran, err := l.Do(context.Background(), "elementos", func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.True(t, ran)
	}
}

func TestNewRedisLockerUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisLocker(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
