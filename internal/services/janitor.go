package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// sweepInterval is how often RunJanitor loops call their sweep.
const sweepInterval = time.Minute

// runJanitor calls sweep every interval until ctx is done.
func runJanitor(ctx context.Context, log *zap.Logger, interval time.Duration, sweep func() int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := sweep(); n > 0 {
				log.Debug("janitor evicted entries", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
