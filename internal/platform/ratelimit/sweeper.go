package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartSweeper calls Sweep every interval until ctx is cancelled.
func StartSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration, logger *zap.Logger) {
	if sweeper == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, err := sweeper.Sweep(ctx, now)
				if err != nil {
					logger.Warn("rate limit sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("rate limit counters swept", zap.Int("removed", removed))
				}
			}
		}
	}()
}
