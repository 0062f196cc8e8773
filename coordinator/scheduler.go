package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pkgcron "github.com/agrovision/fedcore/pkg/cron"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/robfig/cron/v3"
)

var errNoSchedule = errors.New("round schedule is required")

type ScheduleConfig struct {
	Schedule        string
	Timezone        string
	MinParticipants int
	Timeout         time.Duration
}

// RoundScheduler opens a round every time its cron schedule fires. A tick
// that finds a round still open is skipped.
type RoundScheduler struct {
	cron     *cron.Cron
	schedule *pkgcron.Schedule
	svc      Service
	cfg      ScheduleConfig
	logger   *slog.Logger
}

func NewRoundScheduler(svc Service, cfg ScheduleConfig, logger *slog.Logger) (*RoundScheduler, error) {
	if cfg.Schedule == "" {
		return nil, errNoSchedule
	}
	schedule, err := pkgcron.Parse(cfg.Schedule, cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if cfg.MinParticipants < 0 || cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: min_participants %d, timeout %s", fl.ErrInvalidRound, cfg.MinParticipants, cfg.Timeout)
	}

	return &RoundScheduler{
		cron:     cron.New(),
		schedule: schedule,
		svc:      svc,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Start blocks until ctx is cancelled.
func (rs *RoundScheduler) Start(ctx context.Context) error {
	rs.cron.Schedule(rs.schedule, cron.FuncJob(func() { rs.run(ctx) }))
	rs.cron.Start()
	rs.logger.Info("round scheduler started",
		slog.String("schedule", rs.schedule.String()),
		slog.Time("next_run", rs.schedule.Next(time.Now())),
	)

	<-ctx.Done()
	<-rs.cron.Stop().Done()
	rs.logger.Info("round scheduler stopped")

	return nil
}

func (rs *RoundScheduler) run(ctx context.Context) {
	st, err := rs.svc.OpenRound(ctx, rs.cfg.MinParticipants, rs.cfg.Timeout)
	switch {
	case errors.Is(err, fl.ErrRoundInProgress):
		rs.logger.Debug("scheduled round skipped, previous round still open")
	case err != nil:
		rs.logger.Error("failed to open scheduled round", slog.String("error", err.Error()))
	default:
		rs.logger.Info("scheduled round opened",
			slog.Uint64("round_id", st.RoundID),
			slog.Time("deadline", st.Deadline),
		)
	}
}
