package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dotfilings/dotfilings/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyLookupDOT = "lookup:dot:%s"
	keyLookupIP  = "lookup:ip:%s"
)

// LookupLimiter throttles carrier lookups per DOT number and per
// client address. A nil limiter allows everything, so the server code
// never branches on whether limiting is configured.
type LookupLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewLookupLimiter(cfg config.Config) (*LookupLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.LookupRate <= 0 || limitCfg.LookupBurst <= 0 {
		return nil, errors.New("lookup rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &LookupLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.LookupRate,
		burst:   limitCfg.LookupBurst,
	}, nil
}

func (l *LookupLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow charges one token against both the DOT bucket and the client
// bucket. The stricter of the two wins.
func (l *LookupLimiter) Allow(ctx context.Context, dotNumber, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyLookupDOT, strings.TrimSpace(dotNumber)), l.rate, l.burst)
	if err != nil {
		return Result{}, err
	}
	if !res.Allowed {
		return res, nil
	}

	if ip := strings.TrimSpace(clientIP); ip != "" {
		return l.bucket.Allow(ctx, fmt.Sprintf(keyLookupIP, ip), l.rate, l.burst)
	}
	return res, nil
}
