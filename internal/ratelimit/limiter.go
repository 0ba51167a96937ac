// Package ratelimit enforces per-provider send limits with an atomic Redis
// Lua script over per-second, per-minute and per-day windows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/announce/internal/metrics"
)

// ErrDailyLimit is returned once a provider's daily quota is used up.
var ErrDailyLimit = errors.New("daily send limit exceeded")

// Limit defines the windows for one provider. Zero windows are unlimited.
type Limit struct {
	PerSecond int `yaml:"per_second"`
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// DefaultLimits match the providers' entry-level plans.
var DefaultLimits = map[string]Limit{
	"resend": {PerSecond: 10, PerMinute: 600, PerDay: 100000},
	"ses":    {PerSecond: 14, PerMinute: 840, PerDay: 50000},
}

// Lua script for atomic multi-key rate limit check. It only increments
// when every window has room.
const multiLimitLuaScript = `
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local minuteLimit = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])
local secondTTL = tonumber(ARGV[5])
local minuteTTL = tonumber(ARGV[6])
local dailyTTL = tonumber(ARGV[7])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secondLimit > 0 and secCurrent + increment > secondLimit then
    return {0, 1, secCurrent}
end
if minuteLimit > 0 and minCurrent + increment > minuteLimit then
    return {0, 2, minCurrent}
end
if dailyLimit > 0 and dayCurrent + increment > dailyLimit then
    return {0, 3, dayCurrent}
end

local newSec = redis.call("INCRBY", secondKey, increment)
if newSec == increment then
    redis.call("EXPIRE", secondKey, secondTTL)
end

local newMin = redis.call("INCRBY", minuteKey, increment)
if newMin == increment then
    redis.call("EXPIRE", minuteKey, minuteTTL)
end

local newDay = redis.call("INCRBY", dailyKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dailyKey, dailyTTL)
end

return {1, 0, newDay}
`

// Limiter is a Redis-backed multi-window rate limiter.
type Limiter struct {
	redis  redis.Cmdable
	limits map[string]Limit
	script *redis.Script
	now    func() time.Time
}

// New creates a limiter. Providers missing from limits are unlimited.
func New(rdb redis.Cmdable, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Limiter{
		redis:  rdb,
		limits: limits,
		script: redis.NewScript(multiLimitLuaScript),
		now:    time.Now,
	}
}

// CheckAndIncrement atomically reserves n sends for provider. When denied
// it returns how long to wait before trying again.
func (l *Limiter) CheckAndIncrement(ctx context.Context, provider string, n int) (allowed bool, wait time.Duration, err error) {
	lim, ok := l.limits[provider]
	if !ok {
		return true, 0, nil
	}

	now := l.now()
	secondKey := fmt.Sprintf("announce:ratelimit:%s:sec:%d", provider, now.Unix())
	minuteKey := fmt.Sprintf("announce:ratelimit:%s:min:%d", provider, now.Unix()/60)
	dailyKey := fmt.Sprintf("announce:ratelimit:%s:day:%s", provider, now.Format("2006-01-02"))

	res, err := l.script.Run(ctx, l.redis,
		[]string{secondKey, minuteKey, dailyKey},
		n,
		lim.PerSecond,
		lim.PerMinute,
		lim.PerDay,
		2,     // second TTL
		120,   // minute TTL
		90000, // daily TTL (25 hours)
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}

	if res[0].(int64) == 1 {
		return true, 0, nil
	}
	switch res[1].(int64) {
	case 1:
		wait = time.Second
	case 2:
		wait = time.Duration(60-now.Second()) * time.Second
	case 3:
		return false, 0, fmt.Errorf("%s: %w", provider, ErrDailyLimit)
	}
	return false, wait, nil
}

// Wait blocks until one send for provider is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	for {
		allowed, wait, err := l.CheckAndIncrement(ctx, provider, 1)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		log.Printf("[RateLimiter] %s throttled, waiting %s", provider, wait)
		metrics.IncRateLimitWait(provider)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Usage returns the current window counters for provider.
func (l *Limiter) Usage(ctx context.Context, provider string) (map[string]int64, error) {
	now := l.now()
	pipe := l.redis.Pipeline()
	secCmd := pipe.Get(ctx, fmt.Sprintf("announce:ratelimit:%s:sec:%d", provider, now.Unix()))
	minCmd := pipe.Get(ctx, fmt.Sprintf("announce:ratelimit:%s:min:%d", provider, now.Unix()/60))
	dayCmd := pipe.Get(ctx, fmt.Sprintf("announce:ratelimit:%s:day:%s", provider, now.Format("2006-01-02")))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("rate limit usage: %w", err)
	}

	sec, _ := secCmd.Int64()
	min, _ := minCmd.Int64()
	day, _ := dayCmd.Int64()
	lim := l.limits[provider]

	return map[string]int64{
		"second_current": sec,
		"second_limit":   int64(lim.PerSecond),
		"minute_current": min,
		"minute_limit":   int64(lim.PerMinute),
		"daily_current":  day,
		"daily_limit":    int64(lim.PerDay),
	}, nil
}
