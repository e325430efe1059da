package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived named locks. ok is false when another holder
// owns the key; unlock is a no-op in that case.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

const lockKeyPrefix = "affiliate:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLockerImpl struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLockerImpl{rdb: rdb}
}

func (l *redisLockerImpl) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	unlock := func() {
		// release must survive the caller's context being done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.rdb, []string{redisKey}, token).Err()
	}

	return unlock, true, nil
}

type localLockerImpl struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker is used when no Redis is configured; it only serialises
// callers inside this process.
func NewLocalLocker() Locker {
	return &localLockerImpl{held: make(map[string]time.Time)}
}

func (l *localLockerImpl) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return func() {}, false, nil
	}

	expires := now.Add(ttl)
	l.held[key] = expires

	unlock := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == expires {
			delete(l.held, key)
		}
	}

	return unlock, true, nil
}
