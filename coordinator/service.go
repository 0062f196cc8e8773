package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/mqtt"
	"github.com/agrovision/fedcore/pkg/storage"
	"github.com/fxamacker/cbor/v2"
)

const defLimit = 100

type Config struct {
	Dimension   int
	Aggregation string
	// AutoClose closes a round as soon as it reaches quorum.
	AutoClose bool
	BaseTopic string
}

type service struct {
	cfg        Config
	nodes      storage.NodeRepository
	models     storage.ModelRepository
	rounds     storage.RoundRepository
	archive    Archive
	pubsub     mqtt.PubSub
	logger     *slog.Logger
	aggregator fl.Aggregator
	controller *fl.RoundController
	coord      atomic.Pointer[fl.Coordinator]
	// persistMu orders round snapshots written to the repository.
	persistMu sync.Mutex
	// finalizeMu keeps a Closed round from being aggregated twice.
	finalizeMu sync.Mutex
}

// NewService wires the coordinator. archive may be nil, in which case
// finished rounds stay in memory and only the latest model is retrievable.
func NewService(cfg Config, repos *storage.Repositories, archive Archive, pubsub mqtt.PubSub, logger *slog.Logger, opts ...fl.RoundOption) (Service, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", fl.ErrInvalidRound, cfg.Dimension)
	}
	aggregator, err := fl.NewAggregator(cfg.Aggregation)
	if err != nil {
		return nil, err
	}
	if pubsub == nil {
		pubsub = mqtt.NewNoop()
	}

	svc := &service{
		cfg:        cfg,
		nodes:      repos.Nodes,
		models:     repos.Models,
		rounds:     repos.Rounds,
		archive:    archive,
		pubsub:     pubsub,
		logger:     logger,
		aggregator: aggregator,
		controller: fl.NewRoundController(opts...),
	}
	svc.coord.Store(fl.NewCoordinator(fl.NewModel(cfg.Dimension), aggregator))

	return svc, nil
}

func (svc *service) RegisterNode(ctx context.Context, id, region string) (fl.Participant, error) {
	if id == "" {
		return fl.Participant{}, fmt.Errorf("%w: empty node id", pkgerrors.ErrInvalidData)
	}

	now := time.Now().UTC()
	p, err := svc.nodes.Get(ctx, id)
	switch {
	case err == nil && p.Active:
		return fl.Participant{}, fmt.Errorf("%w: %s", fl.ErrDuplicateNode, id)
	case err == nil:
		p.Active = true
		p.Region = region
		p.RegisteredAt = now
		p.DeregisteredAt = time.Time{}
		if err := svc.nodes.Update(ctx, p); err != nil {
			return fl.Participant{}, err
		}

		return p, nil
	case !errors.Is(err, pkgerrors.ErrNotFound):
		return fl.Participant{}, err
	}

	p = fl.Participant{
		ID:           id,
		Region:       region,
		Active:       true,
		RegisteredAt: now,
	}
	if err := svc.nodes.Create(ctx, p); err != nil {
		if errors.Is(err, pkgerrors.ErrEntityExists) {
			return fl.Participant{}, fmt.Errorf("%w: %s", fl.ErrDuplicateNode, id)
		}

		return fl.Participant{}, err
	}

	return p, nil
}

func (svc *service) DeregisterNode(ctx context.Context, id string) error {
	p, err := svc.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}

	p.Active = false
	p.DeregisteredAt = time.Now().UTC()

	return svc.nodes.Update(ctx, p)
}

func (svc *service) GetNode(ctx context.Context, id string) (fl.Participant, error) {
	if id == "" {
		return fl.Participant{}, fmt.Errorf("%w: empty node id", pkgerrors.ErrEmptyKey)
	}

	p, err := svc.nodes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return fl.Participant{}, fmt.Errorf("%w: %s", fl.ErrNodeNotFound, id)
		}

		return fl.Participant{}, err
	}

	return p, nil
}

func (svc *service) ListNodes(ctx context.Context, offset, limit uint64) (NodePage, error) {
	if limit == 0 {
		limit = defLimit
	}

	nodes, total, err := svc.nodes.List(ctx, offset, limit)
	if err != nil {
		return NodePage{}, err
	}

	return NodePage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Nodes:  nodes,
	}, nil
}

func (svc *service) OpenRound(ctx context.Context, minParticipants int, timeout time.Duration) (fl.RoundStatus, error) {
	svc.sweep(ctx)

	coord := svc.coord.Load()
	model := coord.GlobalModel()
	r, err := svc.controller.Open(minParticipants, timeout, model.Dimension(), model.Version)
	if err != nil {
		return fl.RoundStatus{}, err
	}
	if err := svc.saveRound(ctx, r.ID); err != nil {
		return r.Status(), err
	}

	svc.publish(ctx, TopicRoundOpen, RoundOpened{
		RoundID:         r.ID,
		MinParticipants: r.MinParticipants,
		Deadline:        r.Deadline,
		ModelVersion:    r.ModelVersion,
		Dimension:       r.Dimension,
	})

	return r.Status(), nil
}

func (svc *service) CurrentRound(ctx context.Context) (fl.RoundStatus, error) {
	svc.sweep(ctx)

	r, ok := svc.controller.Current()
	if !ok {
		return fl.RoundStatus{}, fmt.Errorf("%w: no open round", fl.ErrRoundNotFound)
	}

	return r.Status(), nil
}

func (svc *service) GetRoundStatus(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	svc.sweep(ctx)

	r, err := svc.controller.Get(roundID)
	if err == nil {
		return r.Status(), nil
	}
	if !errors.Is(err, fl.ErrRoundNotFound) || svc.archive == nil {
		return fl.RoundStatus{}, err
	}

	r, err = svc.archive.LoadRound(roundID)
	if err != nil {
		return fl.RoundStatus{}, err
	}

	return r.Status(), nil
}

func (svc *service) SubmitUpdate(ctx context.Context, env fl.Envelope) (fl.RoundStatus, error) {
	svc.sweep(ctx)

	p, err := svc.GetNode(ctx, env.NodeID)
	if err != nil {
		return fl.RoundStatus{}, err
	}
	if !p.Active {
		return fl.RoundStatus{}, fmt.Errorf("%w: %s is deregistered", fl.ErrNodeNotFound, env.NodeID)
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}

	accepted, err := svc.controller.Submit(env.RoundID, env)
	if err != nil {
		return svc.statusOf(env.RoundID), err
	}
	if err := svc.saveRound(ctx, env.RoundID); err != nil {
		return svc.statusOf(env.RoundID), err
	}

	status := svc.statusOf(env.RoundID)
	if svc.cfg.AutoClose && status.MinParticipants > 0 && accepted >= status.MinParticipants {
		closed, err := svc.closeRound(ctx, env.RoundID)
		switch {
		case err == nil:
			return closed, nil
		case errors.Is(err, fl.ErrRoundClosed):
			return svc.statusOf(env.RoundID), nil
		default:
			return closed, err
		}
	}

	return status, nil
}

func (svc *service) SubmitUpdateCBOR(ctx context.Context, roundID uint64, data []byte) (fl.RoundStatus, error) {
	var env fl.Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return fl.RoundStatus{}, fmt.Errorf("%w: failed to decode CBOR update: %w", pkgerrors.ErrInvalidData, err)
	}

	switch env.RoundID {
	case 0:
		env.RoundID = roundID
	case roundID:
	default:
		return fl.RoundStatus{}, fmt.Errorf("%w: envelope for round %d posted to round %d", fl.ErrInvalidRound, env.RoundID, roundID)
	}

	return svc.SubmitUpdate(ctx, env)
}

func (svc *service) CloseRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	return svc.closeRound(ctx, roundID)
}

func (svc *service) AbortRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	r, err := svc.controller.Abort(roundID)
	if err != nil {
		return r.Status(), err
	}

	return r.Status(), svc.retireAborted(ctx, r, "aborted by operator")
}

func (svc *service) GetGlobalModel(_ context.Context) (fl.Model, error) {
	return svc.coord.Load().GlobalModel(), nil
}

func (svc *service) GetModelVersion(_ context.Context, version uint64) (fl.Model, error) {
	current := svc.coord.Load().GlobalModel()
	if version == current.Version {
		return current, nil
	}
	if svc.archive == nil || version > current.Version {
		return fl.Model{}, fmt.Errorf("%w: v%d", fl.ErrModelNotFound, version)
	}

	return svc.archive.LoadModel(version)
}

func (svc *service) Sweep(ctx context.Context) ([]fl.RoundStatus, error) {
	var (
		statuses []fl.RoundStatus
		errs     []error
	)
	for _, r := range svc.controller.Expire() {
		if r.State == fl.RoundAborted {
			statuses = append(statuses, r.Status())
			errs = append(errs, svc.retireAborted(ctx, r, fl.ErrQuorumNotMet.Error()))
		}
	}
	// Rounds closed by the deadline join those whose earlier finalize failed.
	for _, r := range svc.controller.Pending() {
		status, err := svc.finalize(ctx, r.ID)
		statuses = append(statuses, status)
		errs = append(errs, err)
	}

	return statuses, errors.Join(errs...)
}

func (svc *service) Restore(ctx context.Context) error {
	model, err := svc.models.Latest(ctx)
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		model = fl.NewModel(svc.cfg.Dimension)
		if err := svc.saveModel(ctx, model); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to load latest model: %w", err)
	}
	if model.Dimension() != svc.cfg.Dimension {
		svc.logger.Warn("persisted model dimension differs from configuration, keeping persisted model",
			slog.Int("persisted", model.Dimension()),
			slog.Int("configured", svc.cfg.Dimension),
		)
	}
	svc.coord.Store(fl.NewCoordinator(model, svc.aggregator))

	r, err := svc.rounds.Latest(ctx)
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		svc.logger.Info("restored coordinator state", slog.Uint64("model_version", model.Version))

		return nil
	case err != nil:
		return fmt.Errorf("failed to load latest round: %w", err)
	}

	switch {
	case r.State == fl.RoundClosed && model.Version > r.ModelVersion:
		// The model of this round was persisted before the round itself
		// was marked aggregated.
		r.State = fl.RoundAggregated
		r.ModelVersion = model.Version
		svc.controller.Restore(r)
		if err := svc.retire(ctx, r); err != nil {
			return err
		}
	case r.State == fl.RoundClosed:
		svc.controller.Restore(r)
		if _, err := svc.finalize(ctx, r.ID); err != nil {
			return err
		}
	default:
		svc.controller.Restore(r)
	}

	svc.logger.Info("restored coordinator state",
		slog.Uint64("model_version", model.Version),
		slog.Uint64("round_id", r.ID),
		slog.String("round_state", r.State.String()),
	)

	return nil
}

func (svc *service) closeRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	r, err := svc.controller.Close(roundID)
	switch {
	case errors.Is(err, fl.ErrQuorumNotMet):
		return r.Status(), errors.Join(err, svc.retireAborted(ctx, r, err.Error()))
	case errors.Is(err, fl.ErrRoundClosed) && r.State == fl.RoundClosed:
		// A previous finalize failed; closing again retries it.
	case err != nil:
		return r.Status(), err
	}

	return svc.finalize(ctx, roundID)
}

// finalize aggregates a Closed round, publishes the resulting model and
// retires the round. The Closed round is persisted first, so a failure
// before aggregation leaves it Closed for the sweep or a restart to retry.
func (svc *service) finalize(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	svc.finalizeMu.Lock()
	defer svc.finalizeMu.Unlock()

	r, err := svc.controller.Get(roundID)
	switch {
	case errors.Is(err, fl.ErrRoundNotFound):
		return svc.statusOf(roundID), nil
	case err != nil:
		return fl.RoundStatus{}, err
	case r.State != fl.RoundClosed:
		return r.Status(), nil
	}
	if err := svc.saveRound(ctx, r.ID); err != nil {
		return r.Status(), err
	}

	model, applied, err := svc.coord.Load().Aggregate(r)
	if err != nil {
		return r.Status(), fmt.Errorf("failed to aggregate round %d: %w", r.ID, err)
	}
	aggregated, err := svc.controller.MarkAggregated(r.ID, model.Version)
	if err != nil {
		return r.Status(), err
	}
	if applied {
		if err := svc.saveModel(ctx, model); err != nil {
			return aggregated.Status(), err
		}
	}
	svc.publish(ctx, TopicRoundNext, ModelPublished{
		RoundID:       aggregated.ID,
		ModelVersion:  model.Version,
		AcceptedCount: len(aggregated.Accepted),
		UpdatedAt:     model.UpdatedAt,
	})

	return aggregated.Status(), svc.retire(ctx, aggregated)
}

func (svc *service) retireAborted(ctx context.Context, r fl.Round, reason string) error {
	if err := svc.retire(ctx, r); err != nil {
		return err
	}
	svc.publish(ctx, TopicRoundAborted, RoundAborted{
		RoundID:         r.ID,
		MinParticipants: r.MinParticipants,
		Reason:          reason,
	})

	return nil
}

// retire persists a terminal round and hands it over to the archive. A
// round the archive refuses stays in memory so its status remains readable.
func (svc *service) retire(ctx context.Context, r fl.Round) error {
	svc.persistMu.Lock()
	defer svc.persistMu.Unlock()

	if err := svc.rounds.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to persist round %d: %w", r.ID, err)
	}
	if svc.archive == nil {
		return nil
	}
	if err := svc.archive.SaveRound(r); err != nil {
		svc.logger.Warn("failed to archive round", slog.Uint64("round_id", r.ID), slog.Any("error", err))

		return nil
	}
	svc.controller.Forget(r.ID)

	return nil
}

func (svc *service) saveRound(ctx context.Context, roundID uint64) error {
	svc.persistMu.Lock()
	defer svc.persistMu.Unlock()

	r, err := svc.controller.Get(roundID)
	switch {
	case errors.Is(err, fl.ErrRoundNotFound):
		// Already retired by a concurrent close.
		return nil
	case err != nil:
		return err
	case r.State.Terminal():
		return nil
	}
	if err := svc.rounds.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to persist round %d: %w", roundID, err)
	}

	return nil
}

func (svc *service) saveModel(ctx context.Context, m fl.Model) error {
	if err := svc.models.Save(ctx, m); err != nil {
		return fmt.Errorf("failed to persist model v%d: %w", m.Version, err)
	}
	if svc.archive != nil {
		if err := svc.archive.SaveModel(m); err != nil {
			svc.logger.Warn("failed to archive model", slog.Uint64("model_version", m.Version), slog.Any("error", err))
		}
	}

	return nil
}

func (svc *service) statusOf(roundID uint64) fl.RoundStatus {
	r, err := svc.controller.Get(roundID)
	if err == nil {
		return r.Status()
	}
	if svc.archive != nil {
		if r, err := svc.archive.LoadRound(roundID); err == nil {
			return r.Status()
		}
	}

	return fl.RoundStatus{RoundID: roundID}
}

// sweep is the lazy deadline check run ahead of round operations.
func (svc *service) sweep(ctx context.Context) {
	if _, err := svc.Sweep(ctx); err != nil {
		svc.logger.Warn("failed to finalize expired rounds", slog.Any("error", err))
	}
}

func (svc *service) publish(ctx context.Context, suffix string, msg any) {
	topic := svc.cfg.BaseTopic + "/" + suffix
	if err := svc.pubsub.Publish(ctx, topic, msg); err != nil {
		svc.logger.Warn("failed to publish notification", slog.String("topic", topic), slog.Any("error", err))
	}
}
