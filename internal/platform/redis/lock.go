package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

// Locker is a best-effort mutual exclusion across replicas.
type Locker interface {
	// Acquire waits up to wait for key. acquired is false when the wait ran out;
	// release is always safe to call.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), acquired bool, err error)
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type redisLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	poll   time.Duration
}

// Only the holder's token may delete the key.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewLocker(log *logger.Logger, cfg Config) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "evidence:lock:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisLocker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: prefix,
		poll:   100 * time.Millisecond,
	}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), bool, error) {
	full := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return noop, false, fmt.Errorf("redis lock %s: %w", full, err)
		}
		if ok {
			return l.releaser(full, token), true, nil
		}
		if !time.Now().Before(deadline) {
			return noop, false, nil
		}
		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return noop, false, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *redisLocker) releaser(key, token string) func() {
	return func() {
		// The caller's ctx may already be done; release on a short fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			l.log.Warn("Redis lock release failed", "key", key, "error", err)
		}
	}
}

func (l *redisLocker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

func noop() {}

// NopLocker always acquires immediately; used when Redis is not configured.
type NopLocker struct{}

func (NopLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), bool, error) {
	return noop, true, nil
}

func (NopLocker) Close() error { return nil }
