package worker

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner removes waitlist entries past their absolute expiry.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// WaitlistCleanup drops expired waitlist entries on a fixed interval.
type WaitlistCleanup struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *slog.Logger
}

func NewWaitlistCleanup(cleaner Cleaner, interval time.Duration, logger *slog.Logger) *WaitlistCleanup {
	if interval <= 0 {
		interval = time.Minute
	}

	return &WaitlistCleanup{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger,
	}
}

func (w *WaitlistCleanup) Run(ctx context.Context) error {
	w.logger.Info("waitlist cleanup started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("waitlist cleanup stopped")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.cleaner.CleanupExpired(ctx)
			if err != nil {
				w.logger.Error("waitlist cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Info("expired waitlist entries removed", "count", n)
			}
		}
	}
}
