package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agrovision/fedcore/pkg/fl"
)

const nodePrefix = "node:"

type nodeRepo struct {
	db *Database
}

func NewNodeRepository(db *Database) NodeRepository {
	return &nodeRepo{db: db}
}

func (r *nodeRepo) Create(_ context.Context, p fl.Participant) error {
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.insert([]byte(nodePrefix+p.ID), val)
}

func (r *nodeRepo) Get(_ context.Context, id string) (fl.Participant, error) {
	val, err := r.db.get([]byte(nodePrefix + id))
	if err != nil {
		return fl.Participant{}, err
	}
	var p fl.Participant
	if err := json.Unmarshal(val, &p); err != nil {
		return fl.Participant{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return p, nil
}

func (r *nodeRepo) Update(_ context.Context, p fl.Participant) error {
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.replace([]byte(nodePrefix+p.ID), val)
}

func (r *nodeRepo) List(_ context.Context, offset, limit uint64) ([]fl.Participant, uint64, error) {
	prefix := []byte(nodePrefix)
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	nodes := make([]fl.Participant, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &nodes[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return nodes, total, nil
}
