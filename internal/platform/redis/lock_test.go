package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

func TestNopLockerAlwaysAcquires(t *testing.T) {
	var l Locker = NopLocker{}
	release, ok, err := l.Acquire(context.Background(), "k", time.Second, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
	assert.NoError(t, l.Close())
}

func TestNewLockerValidates(t *testing.T) {
	_, err := NewLocker(nil, Config{Addr: "localhost:6379"})
	assert.Error(t, err)
	_, err = NewLocker(logger.Nop(), Config{})
	assert.Error(t, err)
}

func newTestLocker(t *testing.T) (*redisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewLocker(logger.Nop(), Config{Addr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	rl := l.(*redisLocker)
	rl.poll = 5 * time.Millisecond
	return rl, mr
}

func TestRedisLockerContention(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "doc:1", time.Minute, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:doc:1"))

	start := time.Now()
	_, ok, err = l.Acquire(ctx, "doc:1", time.Minute, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	// Other keys are independent.
	other, ok, err := l.Acquire(ctx, "doc:2", time.Minute, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	other()

	release()
	assert.False(t, mr.Exists("test:doc:1"))

	release2, ok, err := l.Acquire(ctx, "doc:1", time.Minute, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedisLockerWaiterGetsLockAfterRelease(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "pair:1:2", time.Minute, 0)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()
	release2, ok, err := l.Acquire(ctx, "pair:1:2", time.Minute, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedisLockerReleaseChecksToken(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	stale, ok, err := l.Acquire(ctx, "doc:7", time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("test:doc:7"))

	current, ok, err := l.Acquire(ctx, "doc:7", time.Minute, 0)
	require.NoError(t, err)
	require.True(t, ok)
	token, err := mr.Get("test:doc:7")
	require.NoError(t, err)

	// The expired holder must not delete the new holder's key.
	stale()
	got, err := mr.Get("test:doc:7")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	current()
	assert.False(t, mr.Exists("test:doc:7"))
}

func TestRedisLockerTTLExpiry(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	_, ok, err := l.Acquire(ctx, "doc:3", 5*time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, mr.TTL("test:doc:3"))

	_, ok, err = l.Acquire(ctx, "doc:3", 5*time.Second, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// A crashed holder never releases; the TTL frees the key.
	mr.FastForward(6 * time.Second)
	release, ok, err := l.Acquire(ctx, "doc:3", 5*time.Second, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestRedisLockerCanceledWait(t *testing.T) {
	l, _ := newTestLocker(t)
	_, ok, err := l.Acquire(context.Background(), "doc:4", time.Minute, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err = l.Acquire(ctx, "doc:4", time.Minute, time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
