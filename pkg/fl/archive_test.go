package fl_test

import (
	"testing"
	"time"

	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileArchiveModels(t *testing.T) {
	t.Parallel()
	archive, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)

	for v := uint64(3); v > 0; v-- {
		err := archive.SaveModel(fl.Model{Version: v, Weights: []float64{float64(v), 0}, UpdatedAt: time.Now().UTC()})
		require.NoError(t, err)
	}

	versions, err := archive.ListModels()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, versions)

	cases := []struct {
		desc    string
		version uint64
		weights []float64
		err     error
	}{
		{desc: "archived version", version: 2, weights: []float64{2, 0}},
		{desc: "missing version", version: 9, err: fl.ErrModelNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			m, err := archive.LoadModel(tc.version)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.version, m.Version)
			assert.Equal(t, tc.weights, m.Weights)
		})
	}
}

func TestFileArchiveRounds(t *testing.T) {
	t.Parallel()
	archive, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)

	r := fl.Round{
		ID:              5,
		State:           fl.RoundAggregated,
		OpenedAt:        time.Now().UTC().Truncate(time.Second),
		Deadline:        time.Now().UTC().Add(time.Minute).Truncate(time.Second),
		MinParticipants: 1,
		Dimension:       2,
		ModelVersion:    1,
		Accepted: map[string]fl.Envelope{
			"node-a": envelope("node-a", 5, []float64{1, 2}, 1),
		},
	}
	require.NoError(t, archive.SaveRound(r))

	loaded, err := archive.LoadRound(5)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundAggregated, loaded.State)
	assert.Equal(t, r.Status().AcceptedCount, loaded.Status().AcceptedCount)
	assert.Equal(t, []float64{1, 2}, loaded.Accepted["node-a"].Weights)

	_, err = archive.LoadRound(6)
	assert.ErrorIs(t, err, fl.ErrRoundNotFound)

	ids, err := archive.ListRounds()
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, ids)
}

func TestRoundStateText(t *testing.T) {
	t.Parallel()

	for _, state := range []fl.RoundState{fl.RoundOpen, fl.RoundClosed, fl.RoundAggregated, fl.RoundAborted} {
		text, err := state.MarshalText()
		require.NoError(t, err)

		var decoded fl.RoundState
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, state, decoded)
	}

	var s fl.RoundState
	assert.Error(t, s.UnmarshalText([]byte("pending")))
	assert.True(t, fl.RoundAborted.Terminal())
	assert.False(t, fl.RoundClosed.Terminal())
}
