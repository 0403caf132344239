package numbering

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// LockKey guards the read-latest-then-insert window of number allocation
const LockKey = "lock:deliverynote:number"

// ErrLockNotObtained is returned when another allocation holds the lock for too long
var ErrLockNotObtained = errors.New("numbering lock not obtained")

// Locker serializes number allocation across processes
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// RedisLocker serializes allocation with a redis lock
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	opts   *redislock.Options
}

// NewRedisLocker creates a locker that holds the numbering lock for at most ttl
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(ttl/(50*time.Millisecond))),
		},
	}
}

// Lock obtains the numbering lock, waiting up to the lock TTL
func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	lock, err := l.client.Obtain(ctx, LockKey, l.ttl, l.opts)
	if err == redislock.ErrNotObtained {
		return nil, ErrLockNotObtained
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to obtain numbering lock")
	}
	return func() {
		// release with a fresh context so a canceled request still frees the lock
		_ = lock.Release(context.Background())
	}, nil
}

// NoopLocker is used when allocation is not serialized; collisions are then
// resolved by the unique index and a retry.
type NoopLocker struct{}

// Lock never blocks
func (NoopLocker) Lock(context.Context) (func(), error) {
	return func() {}, nil
}
