package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agrovision/fedcore/pkg/fl"
)

const roundPrefix = "round:"

type roundRepo struct {
	db *Database
}

func NewRoundRepository(db *Database) RoundRepository {
	return &roundRepo{db: db}
}

func (r *roundRepo) Save(_ context.Context, round fl.Round) error {
	val, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.set(fmt.Appendf(nil, "%s%020d", roundPrefix, round.ID), val)
}

func (r *roundRepo) Latest(_ context.Context) (fl.Round, error) {
	val, err := r.db.lastWithPrefix([]byte(roundPrefix))
	if err != nil {
		return fl.Round{}, err
	}
	var round fl.Round
	if err := json.Unmarshal(val, &round); err != nil {
		return fl.Round{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return round, nil
}
