// Package ratelimit implements fixed-window request limits backed by Redis
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const script = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// Rule limits how often one user may call an endpoint
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter counts requests per rule and user. A nil Limiter allows everything.
type Limiter struct {
	client  redis.Scripter
	script  *redis.Script
	timeout time.Duration
	logger  *slog.Logger
}

// NewLimiter returns nil when client is nil so callers can run without Redis
func NewLimiter(client redis.Scripter, logger *slog.Logger) *Limiter {
	if client == nil {
		return nil
	}
	return &Limiter{
		client:  client,
		script:  redis.NewScript(script),
		timeout: 250 * time.Millisecond,
		logger:  logger,
	}
}

// Key returns the Redis key counting userID's calls under rule
func Key(rule Rule, userID string) string {
	return fmt.Sprintf("ratelimit:%s:%s", rule.Name, userID)
}

// Allow reports whether userID may make another call under rule.
// Redis failures allow the request.
func (l *Limiter) Allow(ctx context.Context, rule Rule, userID string) bool {
	if l == nil || l.client == nil {
		return true
	}
	if userID == "" || rule.Limit <= 0 || rule.Window <= 0 {
		return true
	}

	ttl := rule.Window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	allowed, err := l.script.Run(ctx, l.client, []string{Key(rule, userID)}, ttl, rule.Limit).Int64()
	if err != nil {
		l.logger.Warn("Rate limiter unavailable, allowing request",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()),
		)
		return true
	}
	return allowed == 1
}
