package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// SyncLockKey Redis key prefix for per-user sync locks
const SyncLockKey = "jobcat:sync:lock:"

// DefaultSyncLockTTL bounds how long a crashed worker can hold a lock. A live
// holder keeps extending it.
const DefaultSyncLockTTL = 10 * time.Minute

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the key only when it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisSyncLocker serializes syncs per user across processes.
type RedisSyncLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSyncLocker(client *redis.Client, ttl time.Duration) *RedisSyncLocker {
	if ttl <= 0 {
		ttl = DefaultSyncLockTTL
	}
	return &RedisSyncLocker{client: client, ttl: ttl}
}

var _ out.SyncLocker = (*RedisSyncLocker)(nil)

func (l *RedisSyncLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	key := SyncLockKey + userID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSyncInProgress
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		keepAlive(watchCtx, l.ttl/3, func(ctx context.Context) (bool, error) {
			n, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			return n == 1, err
		}, userID)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopWatch()
			<-watchDone

			// the caller's context may already be cancelled
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
				logger.WithError(err).Warn("[RedisSyncLocker.Release] user=%s", userID)
			}
		})
	}, nil
}

// keepAlive calls extend every interval until ctx ends or the lock turns out
// to be gone. Transient errors are retried on the next tick.
func keepAlive(ctx context.Context, every time.Duration, extend func(context.Context) (bool, error), userID string) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		held, err := extend(cctx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.WithError(err).Warn("[RedisSyncLocker.keepAlive] failed to extend lock for user=%s", userID)
		case !held:
			logger.Error("[RedisSyncLocker.keepAlive] lock for user=%s expired while held", userID)
			return
		}
	}
}
