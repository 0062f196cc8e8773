package storage

import (
	"context"

	"github.com/agrovision/fedcore/pkg/fl"
)

type NodeRepository interface {
	Create(ctx context.Context, p fl.Participant) error
	Get(ctx context.Context, id string) (fl.Participant, error)
	Update(ctx context.Context, p fl.Participant) error
	List(ctx context.Context, offset, limit uint64) ([]fl.Participant, uint64, error)
}

// ModelRepository keeps published model versions. Latest returns
// errors.ErrNotFound before the first Save.
type ModelRepository interface {
	Save(ctx context.Context, m fl.Model) error
	Latest(ctx context.Context) (fl.Model, error)
}

// RoundRepository keeps the most recent state of every round, including the
// accepted envelopes of an Open round.
type RoundRepository interface {
	Save(ctx context.Context, r fl.Round) error
	Latest(ctx context.Context) (fl.Round, error)
}
