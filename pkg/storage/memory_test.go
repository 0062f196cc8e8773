package storage_test

import (
	"context"
	"fmt"
	"testing"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/storage"
	"github.com/agrovision/fedcore/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStorage(t *testing.T) {
	t.Parallel()
	s := storage.NewInMemoryStorage()
	ctx := context.Background()

	cases := []struct {
		desc string
		op   func() error
		err  error
	}{
		{desc: "create", op: func() error { return s.Create(ctx, "a", 1) }},
		{desc: "create duplicate", op: func() error { return s.Create(ctx, "a", 2) }, err: pkgerrors.ErrEntityExists},
		{desc: "create empty key", op: func() error { return s.Create(ctx, "", 2) }, err: pkgerrors.ErrEmptyKey},
		{desc: "update", op: func() error { return s.Update(ctx, "a", 3) }},
		{desc: "update missing", op: func() error { return s.Update(ctx, "b", 3) }, err: pkgerrors.ErrNotFound},
		{desc: "delete", op: func() error { return s.Delete(ctx, "a") }},
		{
			desc: "get deleted",
			op: func() error {
				_, err := s.Get(ctx, "a")

				return err
			},
			err: pkgerrors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.ErrorIs(t, tc.op(), tc.err)
		})
	}
}

func TestInMemoryStorageListIsOrdered(t *testing.T) {
	t.Parallel()
	s := storage.NewInMemoryStorage()
	ctx := context.Background()

	for _, k := range []string{"c", "a", "d", "b"} {
		require.NoError(t, s.Create(ctx, k, k))
	}

	page, total, err := s.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), total)
	assert.Equal(t, []any{"b", "c"}, page)

	page, total, err = s.List(ctx, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), total)
	assert.Empty(t, page)
}

func TestMemoryRepositories(t *testing.T) {
	t.Parallel()
	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)
	assert.Nil(t, repos.Closer)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, repos.Nodes.Create(ctx, testutil.TestParticipant(fmt.Sprintf("node-%d", i))))
	}
	nodes, total, err := repos.Nodes.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.Equal(t, "node-0", nodes[0].ID)

	_, err = repos.Models.Latest(ctx)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	require.NoError(t, repos.Models.Save(ctx, testutil.TestModel(2)))
	require.NoError(t, repos.Models.Save(ctx, testutil.TestModel(1)))
	latest, err := repos.Models.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Version)

	round := testutil.TestRound(4, fl.RoundOpen)
	require.NoError(t, repos.Rounds.Save(ctx, round))
	round.Accepted["node-a"].Weights[0] = 99
	saved, err := repos.Rounds.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, saved.Accepted["node-a"].Weights[0])
}

func TestNewRepositoriesUnknownType(t *testing.T) {
	t.Parallel()
	_, err := storage.NewRepositories(storage.Config{Type: "postgres"})
	assert.Error(t, err)
}
