package storage

import (
	"context"
	"sync"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
)

type memoryNodeRepo struct {
	storage Storage
}

func newMemoryNodeRepository(s Storage) NodeRepository {
	return &memoryNodeRepo{storage: s}
}

func (r *memoryNodeRepo) Create(ctx context.Context, p fl.Participant) error {
	return r.storage.Create(ctx, p.ID, p)
}

func (r *memoryNodeRepo) Get(ctx context.Context, id string) (fl.Participant, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return fl.Participant{}, err
	}
	p, ok := data.(fl.Participant)
	if !ok {
		return fl.Participant{}, pkgerrors.ErrInvalidData
	}

	return p, nil
}

func (r *memoryNodeRepo) Update(ctx context.Context, p fl.Participant) error {
	return r.storage.Update(ctx, p.ID, p)
}

func (r *memoryNodeRepo) List(ctx context.Context, offset, limit uint64) ([]fl.Participant, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	nodes := make([]fl.Participant, len(data))
	for i, d := range data {
		p, ok := d.(fl.Participant)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		nodes[i] = p
	}

	return nodes, total, nil
}

type memoryModelRepo struct {
	mu     sync.Mutex
	latest *fl.Model
}

func newMemoryModelRepository() ModelRepository {
	return &memoryModelRepo{}
}

func (r *memoryModelRepo) Save(_ context.Context, m fl.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// latest only moves forward; older versions live in the file archive
	if r.latest != nil && m.Version < r.latest.Version {
		return nil
	}
	saved := m.Clone()
	r.latest = &saved

	return nil
}

func (r *memoryModelRepo) Latest(_ context.Context) (fl.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest == nil {
		return fl.Model{}, pkgerrors.ErrNotFound
	}

	return r.latest.Clone(), nil
}

type memoryRoundRepo struct {
	mu     sync.Mutex
	rounds map[uint64]fl.Round
	last   uint64
}

func newMemoryRoundRepository() RoundRepository {
	return &memoryRoundRepo{rounds: make(map[uint64]fl.Round)}
}

func (r *memoryRoundRepo) Save(_ context.Context, round fl.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accepted := make(map[string]fl.Envelope, len(round.Accepted))
	for id, env := range round.Accepted {
		accepted[id] = fl.NewEnvelope(env.NodeID, env.RoundID, env.Weights, env.SampleWeight, env.Timestamp)
	}
	round.Accepted = accepted
	r.rounds[round.ID] = round
	r.last = max(r.last, round.ID)

	return nil
}

func (r *memoryRoundRepo) Latest(_ context.Context) (fl.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[r.last]
	if !ok {
		return fl.Round{}, pkgerrors.ErrNotFound
	}

	return round, nil
}
