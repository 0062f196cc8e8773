package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agrovision/fedcore/pkg/fl"
)

const modelPrefix = "model:"

type modelRepo struct {
	db *Database
}

func NewModelRepository(db *Database) ModelRepository {
	return &modelRepo{db: db}
}

// Save keys versions with fixed-width numbers so the last key in
// iteration order is the latest version.
func (r *modelRepo) Save(_ context.Context, m fl.Model) error {
	val, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.set(fmt.Appendf(nil, "%s%020d", modelPrefix, m.Version), val)
}

func (r *modelRepo) Latest(_ context.Context) (fl.Model, error) {
	val, err := r.db.lastWithPrefix([]byte(modelPrefix))
	if err != nil {
		return fl.Model{}, err
	}
	var m fl.Model
	if err := json.Unmarshal(val, &m); err != nil {
		return fl.Model{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return m, nil
}
