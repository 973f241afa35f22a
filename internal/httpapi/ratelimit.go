// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/keyward/keyward/pkg/errutil"
)

// RateRule limits requests whose route matches Pattern to Limit per Window.
type RateRule struct {
	Pattern string        `koanf:"pattern"`
	Limit   int           `koanf:"limit"`
	Window  time.Duration `koanf:"window"`
}

// DefaultRateRules throttles the credential endpoints.
func DefaultRateRules() []RateRule {
	return []RateRule{
		{Pattern: "/v1/authentication/logIn", Limit: 10, Window: time.Minute},
		{Pattern: "/v1/authentication/signUp", Limit: 5, Window: time.Minute},
		{Pattern: "/v1/authentication/sendHint", Limit: 3, Window: time.Minute},
		{Pattern: "/v1/authentication/*confirm*", Limit: 10, Window: time.Minute},
		{Pattern: "/v1/authentication/*/*/confirm", Limit: 10, Window: time.Minute},
	}
}

// Counter increments a windowed counter and reports its value and the time
// left in the window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// incrExpire increments KEYS[1], starts its window on first use and returns
// the count and remaining milliseconds.
var incrExpire = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisCounter implements Counter with an atomic Lua script.
type RedisCounter struct {
	rdb redis.Scripter
}

// NewRedisCounter creates a RedisCounter.
func NewRedisCounter(rdb redis.Scripter) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Incr implements Counter.
func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrExpire.Run(ctx, r.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, oops.Code("RATE_LIMIT_FAILED").With("key", key).Wrap(err)
	}
	if len(res) != 2 {
		return 0, 0, oops.Code("RATE_LIMIT_FAILED").With("key", key).Errorf("unexpected script reply %v", res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

type compiledRule struct {
	RateRule
	matcher glob.Glob
}

// RateLimiter throttles requests per route pattern and client IP.
type RateLimiter struct {
	counter Counter
	rules   []compiledRule
	logger  *slog.Logger
}

// NewRateLimiter compiles rules. The first rule whose pattern matches a
// route applies; unmatched routes are not limited.
func NewRateLimiter(counter Counter, rules []RateRule, logger *slog.Logger) (*RateLimiter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.Limit <= 0 || r.Window <= 0 {
			return nil, oops.Code("RATE_RULE_INVALID").
				With("index", i).With("pattern", r.Pattern).
				Errorf("limit and window must be positive")
		}
		g, err := glob.Compile(r.Pattern, '/')
		if err != nil {
			return nil, oops.Code("RATE_RULE_INVALID").
				With("index", i).With("pattern", r.Pattern).Wrap(err)
		}
		compiled = append(compiled, compiledRule{RateRule: r, matcher: g})
	}
	return &RateLimiter{counter: counter, rules: compiled, logger: logger}, nil
}

func (l *RateLimiter) match(route string) (compiledRule, bool) {
	for _, r := range l.rules {
		if r.matcher.Match(route) {
			return r, true
		}
	}
	return compiledRule{}, false
}

// Middleware enforces the rules. Counter failures let the request through.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		rule, ok := l.match(route)
		if !ok || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := "rl:" + rule.Pattern + ":" + c.ClientIP()
		count, ttl, err := l.counter.Incr(c.Request.Context(), key, rule.Window)
		if err != nil {
			errutil.LogWarn(l.logger, "rate limiter unavailable", err, "route", route)
			c.Next()
			return
		}

		remaining := int64(rule.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		reset := int64((ttl + time.Second - 1) / time.Second)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if count > int64(rule.Limit) {
			c.Header("Retry-After", strconv.FormatInt(reset, 10))
			abort(c, http.StatusTooManyRequests, "rate limit exceeded", ErrorBody{Code: "RATE_LIMITED"})
			return
		}
		c.Next()
	}
}
