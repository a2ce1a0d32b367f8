package lock

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

const keyPrefix = "wikidata-cache:lock:"

// RedisConfig holds the connection and lease settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL is the lease of a held lock; it must outlast the slowest top-up.
	TTL time.Duration
}

// RedisLocker collapses calls across processes with a redsync mutex. A caller
// that finds the lock taken waits for its release and does not run fn.
type RedisLocker struct {
	client *redis.Client
	rs     *redsync.Redsync
	ttl    time.Duration
	log    logger.Logger
}

// NewRedisLocker connects to Redis and checks the connection.
func NewRedisLocker(ctx context.Context, cfg RedisConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Newf("failed to connect to redis: %w", err).
			Category(errors.CategoryLock).
			Context("addr", cfg.Addr).
			Component("lock").
			Build()
	}
	return newRedisLocker(client, cfg.TTL), nil
}

func newRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
		log:    logger.Get("lock"),
	}
}

func (l *RedisLocker) newMutex(key string, options ...redsync.Option) *redsync.Mutex {
	options = append([]redsync.Option{redsync.WithExpiry(l.ttl)}, options...)
	return l.rs.NewMutex(keyPrefix+key, options...)
}

func (l *RedisLocker) Do(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	mutex := l.newMutex(key, redsync.WithTries(1))
	if err := mutex.TryLockContext(ctx); err != nil {
		return false, l.wait(ctx, key, err)
	}

	defer func() {
		// The lease must be released even when ctx is already done.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(unlockCtx); err != nil {
			l.log.Warn("failed to release lock", logger.String("key", key), logger.Error(err))
		}
	}()

	return true, fn(ctx)
}

// wait blocks until the holder releases key, then releases it again at once.
func (l *RedisLocker) wait(ctx context.Context, key string, cause error) error {
	var taken *redsync.ErrTaken
	if !errors.As(cause, &taken) && !errors.Is(cause, redsync.ErrFailed) {
		return lockError("acquire", key, cause)
	}

	l.log.WithContext(ctx).Debug("lock held elsewhere, waiting", logger.String("key", key))

	tries := int(l.ttl/(100*time.Millisecond)) + 1
	mutex := l.newMutex(key,
		redsync.WithTries(tries),
		redsync.WithRetryDelay(100*time.Millisecond))
	if err := mutex.LockContext(ctx); err != nil {
		return lockError("wait", key, err)
	}
	if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
		l.log.Warn("failed to release lock", logger.String("key", key), logger.Error(err))
	}
	return nil
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func lockError(op, key string, err error) error {
	return errors.Newf("lock %s %q: %w", op, key, err).
		Category(errors.CategoryLock).
		Context("key", key).
		Component("lock").
		Build()
}
