package job

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts expired job records, independent of
// request traffic.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func NewSweeper(store *Store, interval, retention time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Run sweeps on a fixed interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.store.now().Add(-s.retention)
			if n := s.store.EvictExpired(cutoff); n > 0 {
				s.logger.Info("evicted expired jobs", "count", n, "retention", s.retention)
			}
		}
	}
}
