// Package ratelimit implements a Redis-backed sliding-window limiter shared by
// every API instance.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("rate limit store unavailable")

// Result describes the state of one key after a call to Allow.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the oldest event in the window expires.
	Reset time.Time
}

// RetryAfter is how long a rejected caller should wait before trying again.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.Reset.After(now) {
		return 0
	}
	return r.Reset.Sub(now)
}

type Limiter interface {
	Allow(ctx context.Context, id string) (Result, error)
}

// Events are stored in a sorted set scored by their timestamp in microseconds.
// Returns {allowed, count, oldest}.
var slidingScript = redis.NewScript(`
	local key = KEYS[1]
	local windowStart = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local member = ARGV[4]
	local windowMs = tonumber(ARGV[5])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

	local count = redis.call('ZCARD', key)
	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, windowMs)
		count = count + 1
		allowed = 1
	end

	local oldest = now
	local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #first > 0 then
		oldest = tonumber(first[2])
	end

	return {allowed, count, oldest}
`)

type slidingWindow struct {
	client redis.Cmdable
	name   string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindow allows at most limit events per id within any window-long
// span. name separates independent limiters sharing one Redis.
func NewSlidingWindow(client redis.Cmdable, name string, limit int, window time.Duration) Limiter {
	return &slidingWindow{
		client: client,
		name:   name,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (s *slidingWindow) Allow(ctx context.Context, id string) (Result, error) {
	if s.client == nil {
		return Result{}, fmt.Errorf("%w: no client", ErrUnavailable)
	}

	now := s.now()
	key := fmt.Sprintf("ratelimit:%s:%s", s.name, id)
	member := fmt.Sprintf("%d-%s", now.UnixMicro(), uuid.NewString())

	vals, err := slidingScript.Run(ctx, s.client, []string{key},
		now.Add(-s.window).UnixMicro(),
		s.limit,
		now.UnixMicro(),
		member,
		s.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %v", ErrUnavailable, vals)
	}

	remaining := s.limit - int(vals[1])
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   vals[0] == 1,
		Limit:     s.limit,
		Remaining: remaining,
		Reset:     time.UnixMicro(vals[2]).Add(s.window),
	}, nil
}
