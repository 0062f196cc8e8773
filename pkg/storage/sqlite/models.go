package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
)

type modelRepo struct {
	db *Database
}

func NewModelRepository(db *Database) ModelRepository {
	return &modelRepo{db: db}
}

type dbModel struct {
	Version   uint64    `db:"version"`
	Weights   []byte    `db:"weights"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *modelRepo) Save(ctx context.Context, m fl.Model) error {
	weights, err := json.Marshal(m.Weights)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `INSERT INTO models (version, weights, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET weights = excluded.weights, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, m.Version, weights, m.UpdatedAt); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *modelRepo) Latest(ctx context.Context) (fl.Model, error) {
	query := `SELECT version, weights, updated_at FROM models ORDER BY version DESC LIMIT 1`

	var dbm dbModel
	if err := r.db.GetContext(ctx, &dbm, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Model{}, pkgerrors.ErrNotFound
		}

		return fl.Model{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	m := fl.Model{
		Version:   dbm.Version,
		UpdatedAt: dbm.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal(dbm.Weights, &m.Weights); err != nil {
		return fl.Model{}, fmt.Errorf("%w: %w", pkgerrors.ErrDecode, err)
	}

	return m, nil
}
