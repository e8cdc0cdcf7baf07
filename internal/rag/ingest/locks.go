package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/data/redisStore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes work on one document. release must be called exactly
// once; calling it again is a no-op.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker is a keyed mutex for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.unref(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares ingestion locks between replicas that write to the same
// qdrant server.
type RedisLocker struct {
	store   *redisStore.Store
	ttl     time.Duration
	backoff time.Duration
}

func NewRedisLocker(store *redisStore.Store) *RedisLocker {
	return &RedisLocker{store: store, ttl: config.IngestLockTTL, backoff: config.IngestLockBackoff}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "ingest-lock:" + key
	token := uuid.NewString()
	for {
		ok, err := l.store.SetNX(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquiring ingest lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if _, err := l.store.RunScript(releaseCtx, releaseScript, []string{lockKey}, token); err != nil {
				logger.Error("releasing ingest lock failed", "key", key, "error", err)
			}
		})
	}, nil
}
