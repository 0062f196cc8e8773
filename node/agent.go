package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/sdk"
	"github.com/sethvargo/go-retry"
)

const maxRetryDelay = 10 * time.Second

// Client is the part of the coordinator SDK the agent relies on.
type Client interface {
	RegisterNode(id, region string) (sdk.Node, error)
	CurrentRound() (sdk.RoundStatus, error)
	SubmitUpdate(u sdk.Update) (sdk.RoundStatus, error)
}

type AgentConfig struct {
	DataQuality  float64
	PollInterval time.Duration
	RetryBase    time.Duration
	MaxRetries   uint64
}

// Agent drives one Node against a remote coordinator: it registers, waits
// for an open round, trains once per round and submits the update.
type Agent struct {
	node   *Node
	client Client
	cfg    AgentConfig
	logger *slog.Logger

	lastRound uint64
}

func NewAgent(n *Node, client Client, cfg AgentConfig, logger *slog.Logger) *Agent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defPollInterval
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defRetryBase
	}
	if cfg.DataQuality == 0 {
		cfg.DataQuality = defDataQuality
	}

	return &Agent{
		node:   n,
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Register announces the node to the coordinator. A node that is already
// registered, for example after a restart, is not an error.
func (a *Agent) Register(ctx context.Context) error {
	return a.withRetry(ctx, func() error {
		_, err := a.client.RegisterNode(a.node.ID(), a.node.Region())
		if errors.Is(err, fl.ErrDuplicateNode) {
			a.logger.InfoContext(ctx, "node already registered", slog.String("node_id", a.node.ID()))

			return nil
		}

		return err
	})
}

// Start registers the node and polls for rounds until ctx is cancelled.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.Register(ctx); err != nil {
		return fmt.Errorf("failed to register node %s: %w", a.node.ID(), err)
	}
	a.logger.InfoContext(ctx, "node agent started",
		slog.String("node_id", a.node.ID()),
		slog.String("region", a.node.Region()),
		slog.Duration("poll_interval", a.cfg.PollInterval),
	)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := a.Poll(ctx); err != nil && ctx.Err() == nil {
			a.logger.WarnContext(ctx, "round participation failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			a.logger.Info("node agent stopped", slog.String("node_id", a.node.ID()))

			return nil
		case <-ticker.C:
		}
	}
}

// Poll checks for an open round and participates in it if this node has not
// already done so. It reports whether an update was accepted.
func (a *Agent) Poll(ctx context.Context) (bool, error) {
	round, err := a.client.CurrentRound()
	switch {
	case errors.Is(err, fl.ErrRoundNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to fetch current round: %w", err)
	case round.RoundID == a.lastRound:
		return false, nil
	}

	if err := a.node.TrainLocally(a.cfg.DataQuality); err != nil {
		return false, err
	}
	env, err := a.node.PrepareUpdate(round.RoundID)
	if err != nil {
		return false, err
	}

	var status sdk.RoundStatus
	err = a.withRetry(ctx, func() error {
		var err error
		status, err = a.client.SubmitUpdate(sdk.Update{
			NodeID:       env.NodeID,
			RoundID:      env.RoundID,
			Weights:      env.Weights,
			SampleWeight: env.SampleWeight,
			Timestamp:    env.Timestamp,
		})

		return err
	})
	switch {
	case errors.Is(err, fl.ErrRoundClosed):
		a.lastRound = round.RoundID
		a.logger.InfoContext(ctx, "round closed before update arrived, waiting for the next round",
			slog.String("node_id", a.node.ID()),
			slog.Uint64("round_id", round.RoundID),
		)

		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to submit update for round %d: %w", round.RoundID, err)
	}

	a.lastRound = round.RoundID
	a.logger.InfoContext(ctx, "update accepted",
		slog.String("node_id", a.node.ID()),
		slog.Uint64("round_id", status.RoundID),
		slog.Int("accepted_count", status.AcceptedCount),
		slog.Int("min_participants", status.MinParticipants),
	)

	return true, nil
}

// withRetry retries fn with exponential backoff. Client errors other than
// transport failures and 5xx responses are returned immediately.
func (a *Agent) withRetry(ctx context.Context, fn func() error) error {
	backoff, err := retry.NewExponential(a.cfg.RetryBase)
	if err != nil {
		return fmt.Errorf("invalid retry base %s: %w", a.cfg.RetryBase, err)
	}
	backoff = retry.WithCappedDuration(maxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(a.cfg.MaxRetries, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var sdkErr *sdk.Error
		if errors.As(err, &sdkErr) && sdkErr.StatusCode < http.StatusInternalServerError {
			return err
		}
		a.logger.DebugContext(ctx, "retrying coordinator request", slog.Any("error", err))

		return retry.RetryableError(err)
	})
}
