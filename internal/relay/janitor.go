package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/courier/internal/middleware"
)

// Janitor periodically prunes expired pairings and stale rate-limit buckets.
// It runs independently of request handling and stops when its context is
// cancelled.
type Janitor struct {
	store    *Store
	limiter  *middleware.RateLimiter
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(store *Store, limiter *middleware.RateLimiter, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:    store,
		limiter:  limiter,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks, sweeping once per interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep performs one cleanup pass.
func (j *Janitor) Sweep() {
	pairings := j.store.PruneExpiredPairings()
	buckets := j.limiter.Cleanup()
	if pairings > 0 || buckets > 0 {
		j.logger.Debug("sweep", "expired_pairings", pairings, "stale_buckets", buckets)
	}
}
