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

type roundRepo struct {
	db *Database
}

func NewRoundRepository(db *Database) RoundRepository {
	return &roundRepo{db: db}
}

// The accepted envelopes are stored with the round as a JSON document; the
// state column only serves queries.
func (r *roundRepo) Save(ctx context.Context, round fl.Round) error {
	body, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `INSERT INTO rounds (id, state, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, body = excluded.body, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, round.ID, round.State.String(), body, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *roundRepo) Latest(ctx context.Context) (fl.Round, error) {
	var body []byte
	if err := r.db.GetContext(ctx, &body, `SELECT body FROM rounds ORDER BY id DESC LIMIT 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Round{}, pkgerrors.ErrNotFound
		}

		return fl.Round{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var round fl.Round
	if err := json.Unmarshal(body, &round); err != nil {
		return fl.Round{}, fmt.Errorf("%w: %w", pkgerrors.ErrDecode, err)
	}

	return round, nil
}
