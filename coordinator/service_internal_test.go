package coordinator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRoundAfterRetire(t *testing.T) {
	t.Parallel()
	archive, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s, err := NewService(Config{Dimension: 2, BaseTopic: "fl"}, storage.NewMemoryRepositories(), archive, nil, logger)
	require.NoError(t, err)
	require.NoError(t, s.Restore(ctx))
	svc := s.(*service)

	_, err = svc.RegisterNode(ctx, "farm-a", "eu-west")
	require.NoError(t, err)
	r, err := svc.OpenRound(ctx, 1, time.Minute)
	require.NoError(t, err)

	// A submission accepted just before another caller closes and retires
	// the round still snapshots it afterwards.
	_, err = svc.controller.Submit(r.RoundID, fl.NewEnvelope("farm-a", r.RoundID, []float64{1, 1}, 1, time.Now().UTC()))
	require.NoError(t, err)
	_, err = svc.CloseRound(ctx, r.RoundID)
	require.NoError(t, err)

	_, err = svc.controller.Get(r.RoundID)
	require.ErrorIs(t, err, fl.ErrRoundNotFound)

	assert.NoError(t, svc.saveRound(ctx, r.RoundID))

	status := svc.statusOf(r.RoundID)
	assert.Equal(t, fl.RoundAggregated, status.State)
	assert.Equal(t, 1, status.AcceptedCount)
	assert.Equal(t, uint64(1), status.ModelVersion)
}
