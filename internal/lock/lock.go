package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Release gives a held lock back. Safe to call once per acquisition.
type Release func(ctx context.Context)

// Locker serializes mutations of a single record. Every balance-affecting
// operation acquires the record's key before reading current state and
// releases it only after the mutation is persisted.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// RedisLocker implements Locker with SET NX + a TTL so a crashed holder
// cannot leave the key locked forever. The lock value identifies the
// holder; release checks it via a Lua script so an expired holder cannot
// delete a lock that has since been re-acquired by someone else.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	value := uuid.NewString()

	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		ok, err := l.client.SetNX(ctx, key, value, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) {
				l.client.Eval(ctx, releaseScript, []string{key}, value)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}

	return nil, ErrLockNotAcquired
}

// LocalLocker implements Locker with in-process mutexes. Used in tests and
// single-node deployments where redis is not available.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return func(context.Context) { m.Unlock() }, nil
}
