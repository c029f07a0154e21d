// Package worker holds the periodic background jobs: the hold-expiration
// sweeper and the waitlist cleanup. Both are log-and-swallow loops — the
// next tick is the retry, and no cursor is needed because every pass
// re-evaluates a stateless filter.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Expirer reclaims timed-out holds and reports how many it reverted.
type Expirer interface {
	Expire(ctx context.Context) (int, error)
}

// Sweeper reverts expired holds on a fixed interval. It races freely with
// live confirm/release traffic; the conditional update inside Expire rejects
// the loser.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(expirer Expirer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("hold expiration sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("hold expiration sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.expirer.Expire(ctx); err != nil {
				s.logger.Error("hold expiration sweep failed", "error", err)
			}
		}
	}
}
