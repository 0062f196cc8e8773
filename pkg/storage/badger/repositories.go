package badger

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

type ModelRepository interface {
	Save(ctx context.Context, m fl.Model) error
	Latest(ctx context.Context) (fl.Model, error)
}

type RoundRepository interface {
	Save(ctx context.Context, r fl.Round) error
	Latest(ctx context.Context) (fl.Round, error)
}
