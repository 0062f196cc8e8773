package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/agrovision/fedcore/coordinator"
	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/mqtt/mocks"
	"github.com/agrovision/fedcore/pkg/storage"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	baseTopic = "fl"
	dimension = 2
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc     coordinator.Service
	repos   *storage.Repositories
	archive coordinator.Archive
	pubsub  *mocks.MockPubSub
	clock   *fakeClock
}

func setupTestService(t *testing.T, cfg coordinator.Config) testEnv {
	t.Helper()

	archive, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)

	return setupWithStorage(t, cfg, storage.NewMemoryRepositories(), archive)
}

func setupWithStorage(t *testing.T, cfg coordinator.Config, repos *storage.Repositories, archive coordinator.Archive) testEnv {
	t.Helper()

	if cfg.Dimension == 0 {
		cfg.Dimension = dimension
	}
	cfg.BaseTopic = baseTopic

	pubsub := &mocks.MockPubSub{}
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := coordinator.NewService(cfg, repos, archive, pubsub, logger, fl.WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, svc.Restore(context.Background()))

	return testEnv{svc: svc, repos: repos, archive: archive, pubsub: pubsub, clock: clock}
}

func registerNodes(t *testing.T, svc coordinator.Service, ids ...string) {
	t.Helper()

	for _, id := range ids {
		_, err := svc.RegisterNode(context.Background(), id, "eu-west")
		require.NoError(t, err)
	}
}

func update(nodeID string, roundID uint64, weights []float64, sampleWeight float64) fl.Envelope {
	return fl.NewEnvelope(nodeID, roundID, weights, sampleWeight, time.Time{})
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := coordinator.NewService(coordinator.Config{Dimension: 0}, storage.NewMemoryRepositories(), nil, nil, logger)
	assert.ErrorIs(t, err, fl.ErrInvalidRound)

	_, err = coordinator.NewService(coordinator.Config{Dimension: 2, Aggregation: "median"}, storage.NewMemoryRepositories(), nil, nil, logger)
	assert.ErrorIs(t, err, fl.ErrUnknownAggregator)
}

func TestRegisterNode(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()

	registerNodes(t, env.svc, "farm-1", "farm-2")
	require.NoError(t, env.svc.DeregisterNode(ctx, "farm-2"))

	cases := []struct {
		desc string
		id   string
		err  error
	}{
		{desc: "new node", id: "farm-3"},
		{desc: "duplicate active node", id: "farm-1", err: fl.ErrDuplicateNode},
		{desc: "re-register deregistered node", id: "farm-2"},
		{desc: "empty id", id: "", err: pkgerrors.ErrInvalidData},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			p, err := env.svc.RegisterNode(ctx, tc.id, "us-east")
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.id, p.ID)
			assert.True(t, p.Active)
			assert.True(t, p.DeregisteredAt.IsZero())
		})
	}

	page, err := env.svc.ListNodes(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), page.Total)
	assert.Equal(t, uint64(100), page.Limit)

	_, err = env.svc.GetNode(ctx, "missing")
	assert.ErrorIs(t, err, fl.ErrNodeNotFound)
}

func TestRoundLifecycle(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()
	registerNodes(t, env.svc, "farm-a", "farm-b")

	opened, err := env.svc.OpenRound(ctx, 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundOpen, opened.State)
	env.pubsub.AssertCalled(t, "Publish", mock.Anything, "fl/rounds/open", mock.Anything)

	_, err = env.svc.OpenRound(ctx, 2, time.Minute)
	assert.ErrorIs(t, err, fl.ErrRoundInProgress)

	status, err := env.svc.SubmitUpdate(ctx, update("farm-a", opened.RoundID, []float64{1, 2}, 0.8))
	require.NoError(t, err)
	assert.Equal(t, 1, status.AcceptedCount)

	_, err = env.svc.CloseRound(ctx, opened.RoundID)
	assert.ErrorIs(t, err, fl.ErrQuorumPending)

	status, err = env.svc.SubmitUpdate(ctx, update("farm-b", opened.RoundID, []float64{3, 4}, 0.2))
	require.NoError(t, err)
	assert.Equal(t, 2, status.AcceptedCount)

	current, err := env.svc.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, opened.RoundID, current.RoundID)

	closed, err := env.svc.CloseRound(ctx, opened.RoundID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAggregated, closed.State)
	assert.Equal(t, uint64(1), closed.ModelVersion)
	env.pubsub.AssertCalled(t, "Publish", mock.Anything, "fl/rounds/next", mock.Anything)

	model, err := env.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Version)
	assert.InDeltaSlice(t, []float64{1.4, 2.4}, model.Weights, 1e-9)

	archived, err := env.svc.GetRoundStatus(ctx, opened.RoundID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAggregated, archived.State)
	assert.Equal(t, 2, archived.AcceptedCount)

	initial, err := env.svc.GetModelVersion(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, initial.Weights)

	_, err = env.svc.GetModelVersion(ctx, 7)
	assert.ErrorIs(t, err, fl.ErrModelNotFound)

	_, err = env.svc.CurrentRound(ctx)
	assert.ErrorIs(t, err, fl.ErrRoundNotFound)
}

func TestSubmitUpdateErrors(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()
	registerNodes(t, env.svc, "farm-a", "farm-gone")
	require.NoError(t, env.svc.DeregisterNode(ctx, "farm-gone"))

	r, err := env.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		desc string
		env  fl.Envelope
		err  error
	}{
		{desc: "unregistered node", env: update("stranger", r.RoundID, []float64{1, 2}, 1), err: fl.ErrNodeNotFound},
		{desc: "deregistered node", env: update("farm-gone", r.RoundID, []float64{1, 2}, 1), err: fl.ErrNodeNotFound},
		{desc: "wrong dimension", env: update("farm-a", r.RoundID, []float64{1, 2, 3}, 1), err: fl.ErrDimensionMismatch},
		{desc: "zero sample weight", env: update("farm-a", r.RoundID, []float64{1, 2}, 0), err: fl.ErrInvalidSampleWeight},
		{desc: "unknown round", env: update("farm-a", 42, []float64{1, 2}, 1), err: fl.ErrRoundNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := env.svc.SubmitUpdate(ctx, tc.env)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	status, err := env.svc.GetRoundStatus(ctx, r.RoundID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.AcceptedCount)
}

func TestLateSubmissionIsRejected(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()
	registerNodes(t, env.svc, "farm-a", "farm-late")

	r, err := env.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	_, err = env.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{1, 1}, 1))
	require.NoError(t, err)
	_, err = env.svc.CloseRound(ctx, r.RoundID)
	require.NoError(t, err)

	_, err = env.svc.SubmitUpdate(ctx, update("farm-late", r.RoundID, []float64{9, 9}, 1))
	assert.ErrorIs(t, err, fl.ErrRoundClosed)

	model, err := env.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, model.Weights)
}

func TestQuorumTimeoutAborts(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()
	registerNodes(t, env.svc, "farm-a")

	r, err := env.svc.OpenRound(ctx, 3, time.Minute)
	require.NoError(t, err)
	_, err = env.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{1, 1}, 1))
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)

	_, err = env.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{1, 1}, 1))
	assert.ErrorIs(t, err, fl.ErrRoundClosed)

	status, err := env.svc.GetRoundStatus(ctx, r.RoundID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAborted, status.State)
	assert.Equal(t, 0, status.AcceptedCount)
	env.pubsub.AssertCalled(t, "Publish", mock.Anything, "fl/rounds/aborted", mock.Anything)

	model, err := env.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), model.Version)

	next, err := env.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	assert.Greater(t, next.RoundID, r.RoundID)
}

func TestCloseAfterDeadlineWithoutQuorum(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()

	r, err := env.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	status, err := env.svc.CloseRound(ctx, r.RoundID)
	assert.ErrorIs(t, err, fl.ErrQuorumNotMet)
	assert.Equal(t, fl.RoundAborted, status.State)
}

func TestSweepAggregatesExpiredRoundWithQuorum(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()
	registerNodes(t, env.svc, "farm-a", "farm-b")

	r, err := env.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	_, err = env.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{2, 4}, 1))
	require.NoError(t, err)
	_, err = env.svc.SubmitUpdate(ctx, update("farm-b", r.RoundID, []float64{4, 8}, 1))
	require.NoError(t, err)

	statuses, err := env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	env.clock.Advance(time.Minute)
	statuses, err = env.svc.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, fl.RoundAggregated, statuses[0].State)

	model, err := env.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, 6}, model.Weights, 1e-9)
}

func TestEmptyRoundIsNoop(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()

	r, err := env.svc.OpenRound(ctx, 0, time.Minute)
	require.NoError(t, err)

	status, err := env.svc.CloseRound(ctx, r.RoundID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAggregated, status.State)
	assert.Equal(t, uint64(0), status.ModelVersion)

	model, err := env.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), model.Version)
}

func TestAutoClose(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{AutoClose: true, Aggregation: fl.StrategyMean})
	ctx := context.Background()
	registerNodes(t, env.svc, "farm-a", "farm-b")

	r, err := env.svc.OpenRound(ctx, 2, time.Minute)
	require.NoError(t, err)

	status, err := env.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{1, 2}, 0.8))
	require.NoError(t, err)
	assert.Equal(t, fl.RoundOpen, status.State)

	status, err = env.svc.SubmitUpdate(ctx, update("farm-b", r.RoundID, []float64{3, 4}, 0.2))
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAggregated, status.State)

	model, err := env.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3}, model.Weights, 1e-9)
}

func TestAbortRound(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()

	r, err := env.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)

	status, err := env.svc.AbortRound(ctx, r.RoundID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAborted, status.State)

	_, err = env.svc.AbortRound(ctx, r.RoundID)
	assert.ErrorIs(t, err, fl.ErrRoundClosed)
}

func TestSubmitUpdateCBOR(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()
	registerNodes(t, env.svc, "farm-a")

	r, err := env.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)

	valid, err := cbor.Marshal(update("farm-a", 0, []float64{1, 2}, 1))
	require.NoError(t, err)
	mismatched, err := cbor.Marshal(update("farm-a", r.RoundID+5, []float64{1, 2}, 1))
	require.NoError(t, err)

	cases := []struct {
		desc string
		data []byte
		err  error
	}{
		{desc: "valid envelope", data: valid},
		{desc: "round id mismatch", data: mismatched, err: fl.ErrInvalidRound},
		{desc: "garbage payload", data: []byte{0xff, 0x00}, err: pkgerrors.ErrInvalidData},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			status, err := env.svc.SubmitUpdateCBOR(ctx, r.RoundID, tc.data)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, status.AcceptedCount)
		})
	}
}

func TestRestoreResumesOpenRound(t *testing.T) {
	t.Parallel()
	repos := storage.NewMemoryRepositories()
	archive, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := setupWithStorage(t, coordinator.Config{}, repos, archive)
	registerNodes(t, first.svc, "farm-a", "farm-b")

	r, err := first.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	_, err = first.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{5, 5}, 1))
	require.NoError(t, err)
	_, err = first.svc.CloseRound(ctx, r.RoundID)
	require.NoError(t, err)

	open, err := first.svc.OpenRound(ctx, 2, time.Hour)
	require.NoError(t, err)
	_, err = first.svc.SubmitUpdate(ctx, update("farm-b", open.RoundID, []float64{1, 1}, 1))
	require.NoError(t, err)

	second := setupWithStorage(t, coordinator.Config{}, repos, archive)

	model, err := second.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Version)
	assert.Equal(t, []float64{5, 5}, model.Weights)

	current, err := second.svc.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, open.RoundID, current.RoundID)
	assert.Equal(t, 1, current.AcceptedCount)

	_, err = second.svc.OpenRound(ctx, 1, time.Minute)
	assert.ErrorIs(t, err, fl.ErrRoundInProgress)

	_, err = second.svc.SubmitUpdate(ctx, update("farm-b", r.RoundID, []float64{1, 1}, 1))
	assert.ErrorIs(t, err, fl.ErrRoundClosed)
}

func TestConcurrentSubmissions(t *testing.T) {
	t.Parallel()
	env := setupTestService(t, coordinator.Config{})
	ctx := context.Background()

	const nodes = 20
	ids := make([]string, nodes)
	for i := range ids {
		ids[i] = fmt.Sprintf("farm-%02d", i)
	}
	registerNodes(t, env.svc, ids...)

	r, err := env.svc.OpenRound(ctx, nodes, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.svc.SubmitUpdate(ctx, update(id, r.RoundID, []float64{1, 3}, 1))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	status, err := env.svc.CloseRound(ctx, r.RoundID)
	require.NoError(t, err)
	assert.Equal(t, nodes, status.AcceptedCount)

	model, err := env.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3}, model.Weights, 1e-9)
}

var errDiskFull = errors.New("disk full")

// modelArchiveDown accepts rounds but refuses every model.
type modelArchiveDown struct {
	*fl.FileArchive
}

func (a modelArchiveDown) SaveModel(fl.Model) error {
	return errDiskFull
}

// flakyRounds fails Save for rounds in the configured states.
type flakyRounds struct {
	storage.RoundRepository
	mu   sync.Mutex
	fail map[fl.RoundState]bool
}

func newFlakyRounds(inner storage.RoundRepository, states ...fl.RoundState) *flakyRounds {
	fr := &flakyRounds{RoundRepository: inner, fail: make(map[fl.RoundState]bool)}
	for _, s := range states {
		fr.fail[s] = true
	}

	return fr
}

func (fr *flakyRounds) Save(ctx context.Context, r fl.Round) error {
	fr.mu.Lock()
	fail := fr.fail[r.State]
	fr.mu.Unlock()
	if fail {
		return errDiskFull
	}

	return fr.RoundRepository.Save(ctx, r)
}

func (fr *flakyRounds) heal() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.fail = make(map[fl.RoundState]bool)
}

func TestModelArchiveFailureDoesNotReaggregate(t *testing.T) {
	t.Parallel()
	repos := storage.NewMemoryRepositories()
	files, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)
	archive := modelArchiveDown{FileArchive: files}
	ctx := context.Background()

	first := setupWithStorage(t, coordinator.Config{}, repos, archive)
	registerNodes(t, first.svc, "farm-a")

	r, err := first.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	_, err = first.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{4, 2}, 1))
	require.NoError(t, err)

	closed, err := first.svc.CloseRound(ctx, r.RoundID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAggregated, closed.State)
	assert.Equal(t, uint64(1), closed.ModelVersion)

	second := setupWithStorage(t, coordinator.Config{}, repos, archive)
	second.clock.Advance(2 * time.Minute)
	_, err = second.svc.Sweep(ctx)
	require.NoError(t, err)

	model, err := second.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Version)
	assert.Equal(t, []float64{4, 2}, model.Weights)

	next, err := second.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, r.RoundID+1, next.RoundID)
	assert.Equal(t, uint64(1), next.ModelVersion)
}

func TestRestoreSkipsRoundWhoseModelWasSaved(t *testing.T) {
	t.Parallel()
	base := storage.NewMemoryRepositories()
	rounds := newFlakyRounds(base.Rounds, fl.RoundAggregated)
	repos := &storage.Repositories{Nodes: base.Nodes, Models: base.Models, Rounds: rounds}
	archive, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := setupWithStorage(t, coordinator.Config{}, repos, archive)
	registerNodes(t, first.svc, "farm-a")

	r, err := first.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	_, err = first.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{3, 3}, 1))
	require.NoError(t, err)

	_, err = first.svc.CloseRound(ctx, r.RoundID)
	require.ErrorIs(t, err, errDiskFull)

	persisted, err := base.Rounds.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundClosed, persisted.State)

	second := setupWithStorage(t, coordinator.Config{}, base, archive)

	model, err := second.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Version)
	assert.Equal(t, []float64{3, 3}, model.Weights)

	status, err := second.svc.GetRoundStatus(ctx, r.RoundID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAggregated, status.State)
	assert.Equal(t, uint64(1), status.ModelVersion)

	next, err := second.svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, r.RoundID+1, next.RoundID)
	assert.Equal(t, uint64(1), next.ModelVersion)
}

func TestFailedFinalizeIsRetried(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		retry func(env testEnv, roundID uint64) error
	}{
		{
			desc: "retried by sweep",
			retry: func(env testEnv, _ uint64) error {
				_, err := env.svc.Sweep(context.Background())

				return err
			},
		},
		{
			desc: "retried by closing again",
			retry: func(env testEnv, roundID uint64) error {
				_, err := env.svc.CloseRound(context.Background(), roundID)

				return err
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			base := storage.NewMemoryRepositories()
			rounds := newFlakyRounds(base.Rounds, fl.RoundClosed)
			repos := &storage.Repositories{Nodes: base.Nodes, Models: base.Models, Rounds: rounds}
			archive, err := fl.NewFileArchive(t.TempDir())
			require.NoError(t, err)
			ctx := context.Background()

			env := setupWithStorage(t, coordinator.Config{}, repos, archive)
			registerNodes(t, env.svc, "farm-a")

			r, err := env.svc.OpenRound(ctx, 1, time.Minute)
			require.NoError(t, err)
			_, err = env.svc.SubmitUpdate(ctx, update("farm-a", r.RoundID, []float64{2, 6}, 1))
			require.NoError(t, err)

			status, err := env.svc.CloseRound(ctx, r.RoundID)
			require.ErrorIs(t, err, errDiskFull)
			assert.Equal(t, fl.RoundClosed, status.State)

			model, err := env.svc.GetGlobalModel(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), model.Version)

			rounds.heal()
			require.NoError(t, tc.retry(env, r.RoundID))

			model, err = env.svc.GetGlobalModel(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), model.Version)
			assert.Equal(t, []float64{2, 6}, model.Weights)

			status, err = env.svc.GetRoundStatus(ctx, r.RoundID)
			require.NoError(t, err)
			assert.Equal(t, fl.RoundAggregated, status.State)

			_, err = env.svc.Sweep(ctx)
			require.NoError(t, err)
			model, err = env.svc.GetGlobalModel(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), model.Version)
		})
	}
}
