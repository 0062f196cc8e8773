package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultSweepInterval = time.Second

// Sweeper periodically applies round deadlines so expired rounds are closed
// or aborted even when no request touches them.
type Sweeper struct {
	cron     *cron.Cron
	svc      Service
	logger   *slog.Logger
	interval time.Duration
}

func NewSweeper(svc Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &Sweeper{
		cron:     cron.New(),
		svc:      svc,
		logger:   logger,
		interval: interval,
	}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweeper: %w", err)
	}

	s.cron.Start()
	s.logger.Info("round sweeper started", slog.Duration("interval", s.interval))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("round sweeper stopped")

	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	statuses, err := s.svc.Sweep(ctx)
	if err != nil {
		s.logger.Error("error sweeping rounds", slog.String("error", err.Error()))
	}
	for _, st := range statuses {
		s.logger.Info("round deadline reached",
			slog.Uint64("round_id", st.RoundID),
			slog.String("state", st.State.String()),
			slog.Int("accepted_count", st.AcceptedCount),
		)
	}
}
