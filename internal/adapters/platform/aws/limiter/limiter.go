package limiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

const (
	defaultRateLimitRPS = 20
	minRateLimitRPS     = 1
	maxRateLimitRPS     = 100
)

var (
	apiLimiter  *rate.Limiter
	limiterOnce sync.Once
)

// Initialize sets up the global AWS API rate limiter. Out-of-range values
// fall back to the default.
func Initialize(rps int, logger ports.Logger) {
	limiterOnce.Do(func() {
		limitValue := defaultRateLimitRPS
		logMsg := "Initializing global AWS API rate limiter"
		if rps >= minRateLimitRPS && rps <= maxRateLimitRPS {
			limitValue = rps
			logMsg = fmt.Sprintf("%s with configured rate", logMsg)
		} else if rps != 0 {
			logger.Warnf(context.Background(), "Invalid AWS API RPS configured (%d), using default %d RPS. Valid range: %d-%d.", rps, defaultRateLimitRPS, minRateLimitRPS, maxRateLimitRPS)
			logMsg = fmt.Sprintf("%s with default rate (invalid config)", logMsg)
		} else {
			logMsg = fmt.Sprintf("%s with default rate", logMsg)
		}

		apiLimiter = rate.NewLimiter(rate.Limit(limitValue), limitValue)
		logger.Infof(context.Background(), "%s: %d RPS", logMsg, limitValue)
	})
}

func Wait(ctx context.Context, logger ports.Logger) error {
	if apiLimiter == nil {
		Initialize(defaultRateLimitRPS, logger)
	}
	err := apiLimiter.Wait(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf(ctx, "Error waiting for AWS API rate limiter: %v", err)
		}
		return err
	}
	return nil
}
