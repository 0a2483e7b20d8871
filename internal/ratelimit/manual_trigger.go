package ratelimit

import (
	"context"
	"fmt"

	"github.com/smallbiznis/leasebook/internal/config"
)

const keyManualTriggerOwner = "leasebook:manual_generate:owner:%s"

// ManualTriggerLimiter throttles on-demand invoice generation per landlord.
// A nil limiter allows everything, which is the behavior without Redis.
type ManualTriggerLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewManualTriggerLimiter(cfg config.Config, bucket *TokenBucket) *ManualTriggerLimiter {
	if bucket == nil || cfg.Redis.ManualTriggerRate <= 0 || cfg.Redis.ManualTriggerBurst <= 0 {
		return nil
	}
	return &ManualTriggerLimiter{
		bucket: bucket,
		rate:   cfg.Redis.ManualTriggerRate,
		burst:  cfg.Redis.ManualTriggerBurst,
	}
}

func (l *ManualTriggerLimiter) AllowOwner(ctx context.Context, ownerID string) (Result, error) {
	if l == nil {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyManualTriggerOwner, ownerID), l.rate, l.burst)
}
