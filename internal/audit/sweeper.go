package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes entries whose retention deadline has passed. This is the
// only code path that deletes audit entries.
type Sweeper struct {
	repo     Repository
	interval time.Duration
}

func NewSweeper(repo Repository, interval time.Duration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		interval: interval,
	}
}

// Start runs the sweep on the configured interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("audit retention sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.RunOnce(ctx)
			if err != nil {
				slog.Error("audit retention sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("audit retention sweep completed", "removed", removed)
			}
		}
	}
}

// RunOnce sweeps once and reports how many entries were removed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range expired {
		if err := s.repo.Delete(ctx, e.ID); err != nil {
			slog.Error("failed to delete expired audit entry", "id", e.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
