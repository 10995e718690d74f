package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*slidingWindow, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindow(rdb, "api", limit, window).(*slidingWindow)
	l.now = func() time.Time { return clock }
	return l, mr, &clock
}

func TestSlidingWindow_RejectsOverLimit(t *testing.T) {
	l, _, clock := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()
	start := *clock

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "user:7")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		*clock = clock.Add(time.Second)
	}

	res, err := l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 3, res.Limit)
	assert.True(t, res.Reset.Equal(start.Add(time.Minute)), res.Reset)
	assert.Equal(t, 57*time.Second, res.RetryAfter(*clock))
}

func TestSlidingWindow_Slides(t *testing.T) {
	l, _, clock := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.Allow(ctx, "user:7")
		require.NoError(t, err)
	}
	res, err := l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	*clock = clock.Add(time.Minute + time.Second)
	res, err = l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	l, _, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	res, err := l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestSlidingWindow_StoreDown(t *testing.T) {
	l, mr, _ := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := l.Allow(context.Background(), "user:7")
	assert.ErrorIs(t, err, ErrUnavailable)

	var nilClient Limiter = &slidingWindow{limit: 1, window: time.Minute, now: time.Now}
	_, err = nilClient.Allow(context.Background(), "user:7")
	assert.ErrorIs(t, err, ErrUnavailable)
}
