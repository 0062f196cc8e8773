package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/pkg/fl"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) RegisterNode(ctx context.Context, id, region string) (resp fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("node",
				slog.String("id", id),
				slog.String("region", region),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register node failed", args...)

			return
		}
		lm.logger.Info("Register node completed successfully", args...)
	}(time.Now())

	return lm.svc.RegisterNode(ctx, id, region)
}

func (lm *loggingMiddleware) DeregisterNode(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("node",
				slog.String("id", id),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Deregister node failed", args...)

			return
		}
		lm.logger.Info("Deregister node completed successfully", args...)
	}(time.Now())

	return lm.svc.DeregisterNode(ctx, id)
}

func (lm *loggingMiddleware) GetNode(ctx context.Context, id string) (resp fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("node",
				slog.String("id", id),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get node failed", args...)

			return
		}
		lm.logger.Info("Get node completed successfully", args...)
	}(time.Now())

	return lm.svc.GetNode(ctx, id)
}

func (lm *loggingMiddleware) ListNodes(ctx context.Context, offset, limit uint64) (resp coordinator.NodePage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List nodes failed", args...)

			return
		}
		lm.logger.Info("List nodes completed successfully", args...)
	}(time.Now())

	return lm.svc.ListNodes(ctx, offset, limit)
}

func (lm *loggingMiddleware) OpenRound(ctx context.Context, minParticipants int, timeout time.Duration) (resp fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("id", resp.RoundID),
				slog.Int("min_participants", minParticipants),
				slog.Duration("timeout", timeout),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Open round failed", args...)

			return
		}
		lm.logger.Info("Open round completed successfully", args...)
	}(time.Now())

	return lm.svc.OpenRound(ctx, minParticipants, timeout)
}

func (lm *loggingMiddleware) CurrentRound(ctx context.Context) (resp fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get current round failed", args...)

			return
		}
		args = append(args, slog.Uint64("round_id", resp.RoundID))
		lm.logger.Info("Get current round completed successfully", args...)
	}(time.Now())

	return lm.svc.CurrentRound(ctx)
}

func (lm *loggingMiddleware) GetRoundStatus(ctx context.Context, roundID uint64) (resp fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round status failed", args...)

			return
		}
		lm.logger.Info("Get round status completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRoundStatus(ctx, roundID)
}

func (lm *loggingMiddleware) SubmitUpdate(ctx context.Context, env fl.Envelope) (resp fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("node_id", env.NodeID),
				slog.Uint64("round_id", env.RoundID),
				slog.Int("dimension", len(env.Weights)),
				slog.Float64("sample_weight", env.SampleWeight),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit update failed", args...)

			return
		}
		args = append(args, slog.Int("accepted_count", resp.AcceptedCount))
		lm.logger.Info("Submit update completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitUpdate(ctx, env)
}

func (lm *loggingMiddleware) SubmitUpdateCBOR(ctx context.Context, roundID uint64, data []byte) (resp fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
			slog.Int("payload_bytes", len(data)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit CBOR update failed", args...)

			return
		}
		lm.logger.Info("Submit CBOR update completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitUpdateCBOR(ctx, roundID, data)
}

func (lm *loggingMiddleware) CloseRound(ctx context.Context, roundID uint64) (resp fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("id", roundID),
				slog.String("state", resp.State.String()),
				slog.Int("accepted_count", resp.AcceptedCount),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Close round failed", args...)

			return
		}
		lm.logger.Info("Close round completed successfully", args...)
	}(time.Now())

	return lm.svc.CloseRound(ctx, roundID)
}

func (lm *loggingMiddleware) AbortRound(ctx context.Context, roundID uint64) (resp fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Abort round failed", args...)

			return
		}
		lm.logger.Info("Abort round completed successfully", args...)
	}(time.Now())

	return lm.svc.AbortRound(ctx, roundID)
}

func (lm *loggingMiddleware) GetGlobalModel(ctx context.Context) (resp fl.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("version", resp.Version),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get global model failed", args...)

			return
		}
		lm.logger.Info("Get global model completed successfully", args...)
	}(time.Now())

	return lm.svc.GetGlobalModel(ctx)
}

func (lm *loggingMiddleware) GetModelVersion(ctx context.Context, version uint64) (resp fl.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("version", version),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model version failed", args...)

			return
		}
		lm.logger.Info("Get model version completed successfully", args...)
	}(time.Now())

	return lm.svc.GetModelVersion(ctx, version)
}

// Sweep runs every second, so quiet sweeps are logged at debug level.
func (lm *loggingMiddleware) Sweep(ctx context.Context) (resp []fl.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("expired", len(resp)),
		}
		switch {
		case err != nil:
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Sweep rounds failed", args...)
		case len(resp) == 0:
			lm.logger.Debug("Sweep rounds completed successfully", args...)
		default:
			lm.logger.Info("Sweep rounds completed successfully", args...)
		}
	}(time.Now())

	return lm.svc.Sweep(ctx)
}

func (lm *loggingMiddleware) Restore(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Restore state failed", args...)

			return
		}
		lm.logger.Info("Restore state completed successfully", args...)
	}(time.Now())

	return lm.svc.Restore(ctx)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}
