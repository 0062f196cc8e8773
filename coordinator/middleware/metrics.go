package middleware

import (
	"context"
	"time"

	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) RegisterNode(ctx context.Context, id, region string) (fl.Participant, error) {
	defer mm.observe("register-node", time.Now())

	return mm.svc.RegisterNode(ctx, id, region)
}

func (mm *metricsMiddleware) DeregisterNode(ctx context.Context, id string) error {
	defer mm.observe("deregister-node", time.Now())

	return mm.svc.DeregisterNode(ctx, id)
}

func (mm *metricsMiddleware) GetNode(ctx context.Context, id string) (fl.Participant, error) {
	defer mm.observe("get-node", time.Now())

	return mm.svc.GetNode(ctx, id)
}

func (mm *metricsMiddleware) ListNodes(ctx context.Context, offset, limit uint64) (coordinator.NodePage, error) {
	defer mm.observe("list-nodes", time.Now())

	return mm.svc.ListNodes(ctx, offset, limit)
}

func (mm *metricsMiddleware) OpenRound(ctx context.Context, minParticipants int, timeout time.Duration) (fl.RoundStatus, error) {
	defer mm.observe("open-round", time.Now())

	return mm.svc.OpenRound(ctx, minParticipants, timeout)
}

func (mm *metricsMiddleware) CurrentRound(ctx context.Context) (fl.RoundStatus, error) {
	defer mm.observe("current-round", time.Now())

	return mm.svc.CurrentRound(ctx)
}

func (mm *metricsMiddleware) GetRoundStatus(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	defer mm.observe("get-round-status", time.Now())

	return mm.svc.GetRoundStatus(ctx, roundID)
}

func (mm *metricsMiddleware) SubmitUpdate(ctx context.Context, env fl.Envelope) (fl.RoundStatus, error) {
	defer mm.observe("submit-update", time.Now())

	return mm.svc.SubmitUpdate(ctx, env)
}

func (mm *metricsMiddleware) SubmitUpdateCBOR(ctx context.Context, roundID uint64, data []byte) (fl.RoundStatus, error) {
	defer mm.observe("submit-update-cbor", time.Now())

	return mm.svc.SubmitUpdateCBOR(ctx, roundID, data)
}

func (mm *metricsMiddleware) CloseRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	defer mm.observe("close-round", time.Now())

	return mm.svc.CloseRound(ctx, roundID)
}

func (mm *metricsMiddleware) AbortRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	defer mm.observe("abort-round", time.Now())

	return mm.svc.AbortRound(ctx, roundID)
}

func (mm *metricsMiddleware) GetGlobalModel(ctx context.Context) (fl.Model, error) {
	defer mm.observe("get-global-model", time.Now())

	return mm.svc.GetGlobalModel(ctx)
}

func (mm *metricsMiddleware) GetModelVersion(ctx context.Context, version uint64) (fl.Model, error) {
	defer mm.observe("get-model-version", time.Now())

	return mm.svc.GetModelVersion(ctx, version)
}

func (mm *metricsMiddleware) Sweep(ctx context.Context) ([]fl.RoundStatus, error) {
	defer mm.observe("sweep", time.Now())

	return mm.svc.Sweep(ctx)
}

func (mm *metricsMiddleware) Restore(ctx context.Context) error {
	defer mm.observe("restore", time.Now())

	return mm.svc.Restore(ctx)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer mm.observe("subscribe", time.Now())

	return mm.svc.Subscribe(ctx)
}
