package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tradi/internal/uuid"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a Redis lock shared by every replica running the catalogue sync.
type RunLock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRunLock creates a lock stored at key that expires after ttl if never released.
func NewRunLock(rdb *redis.Client, key string, ttl time.Duration) *RunLock {
	return &RunLock{rdb: rdb, key: key, ttl: ttl}
}

// TryLock takes the lock without waiting. When acquired is false another holder has it.
func (l *RunLock) TryLock(ctx context.Context) (unlock func(), acquired bool, err error) {
	token := uuid.New()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}, true, nil
}

// LocalLock serialises runs inside one process when Redis is not configured.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
