package security

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RateLimitConfig struct {
	RequestsPerIPPerMinute    int
	RequestsPerSessionPerHour int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerIPPerMinute:    10,
		RequestsPerSessionPerHour: 50,
	}
}

// RateLimiter enforces sliding-window limits per client IP and per session,
// backed by Redis sorted sets so limits hold across instances.
type RateLimiter struct {
	rdb *redis.Client
	cfg RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{rdb: rdb, cfg: cfg}
}

// AllowIP reports whether the client IP may issue another request inside
// its one-minute window.
func (r *RateLimiter) AllowIP(ctx context.Context, ip string) (bool, error) {
	return r.allow(ctx, "ratelimit:ip:"+ip, time.Minute, r.cfg.RequestsPerIPPerMinute)
}

// AllowSession reports whether the session may run another round inside
// its one-hour window.
func (r *RateLimiter) AllowSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return r.allow(ctx, "ratelimit:session:"+sessionID.String(), time.Hour, r.cfg.RequestsPerSessionPerHour)
}

func (r *RateLimiter) allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	pipe := r.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	count := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit lookup: %w", err)
	}

	if count.Val() >= int64(limit) {
		return false, nil
	}

	pipe = r.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit record: %w", err)
	}
	return true, nil
}
