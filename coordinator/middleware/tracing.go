package middleware

import (
	"context"
	"time"

	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) RegisterNode(ctx context.Context, id, region string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "register-node", trace.WithAttributes(
		attribute.String("id", id),
		attribute.String("region", region),
	))
	defer span.End()

	return tm.svc.RegisterNode(ctx, id, region)
}

func (tm *tracing) DeregisterNode(ctx context.Context, id string) error {
	ctx, span := tm.tracer.Start(ctx, "deregister-node", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.DeregisterNode(ctx, id)
}

func (tm *tracing) GetNode(ctx context.Context, id string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "get-node", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetNode(ctx, id)
}

func (tm *tracing) ListNodes(ctx context.Context, offset, limit uint64) (coordinator.NodePage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-nodes", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListNodes(ctx, offset, limit)
}

func (tm *tracing) OpenRound(ctx context.Context, minParticipants int, timeout time.Duration) (fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "open-round", trace.WithAttributes(
		attribute.Int("min_participants", minParticipants),
		attribute.String("timeout", timeout.String()),
	))
	defer span.End()

	return tm.svc.OpenRound(ctx, minParticipants, timeout)
}

func (tm *tracing) CurrentRound(ctx context.Context) (fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "current-round")
	defer span.End()

	return tm.svc.CurrentRound(ctx)
}

func (tm *tracing) GetRoundStatus(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "get-round-status", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
	))
	defer span.End()

	return tm.svc.GetRoundStatus(ctx, roundID)
}

func (tm *tracing) SubmitUpdate(ctx context.Context, env fl.Envelope) (fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-update", trace.WithAttributes(
		attribute.String("node_id", env.NodeID),
		attribute.Int64("round_id", int64(env.RoundID)),
		attribute.Int("dimension", len(env.Weights)),
	))
	defer span.End()

	return tm.svc.SubmitUpdate(ctx, env)
}

func (tm *tracing) SubmitUpdateCBOR(ctx context.Context, roundID uint64, data []byte) (fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-update-cbor", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
		attribute.Int("payload_bytes", len(data)),
	))
	defer span.End()

	return tm.svc.SubmitUpdateCBOR(ctx, roundID, data)
}

func (tm *tracing) CloseRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "close-round", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
	))
	defer span.End()

	return tm.svc.CloseRound(ctx, roundID)
}

func (tm *tracing) AbortRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "abort-round", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
	))
	defer span.End()

	return tm.svc.AbortRound(ctx, roundID)
}

func (tm *tracing) GetGlobalModel(ctx context.Context) (fl.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "get-global-model")
	defer span.End()

	return tm.svc.GetGlobalModel(ctx)
}

func (tm *tracing) GetModelVersion(ctx context.Context, version uint64) (fl.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "get-model-version", trace.WithAttributes(
		attribute.Int64("version", int64(version)),
	))
	defer span.End()

	return tm.svc.GetModelVersion(ctx, version)
}

func (tm *tracing) Sweep(ctx context.Context) ([]fl.RoundStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "sweep")
	defer span.End()

	return tm.svc.Sweep(ctx)
}

func (tm *tracing) Restore(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "restore")
	defer span.End()

	return tm.svc.Restore(ctx)
}

func (tm *tracing) Subscribe(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer span.End()

	return tm.svc.Subscribe(ctx)
}
