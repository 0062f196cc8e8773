package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/fl"
)

type nodeRepo struct {
	db *Database
}

func NewNodeRepository(db *Database) NodeRepository {
	return &nodeRepo{db: db}
}

type dbNode struct {
	ID             string       `db:"id"`
	Region         string       `db:"region"`
	Active         bool         `db:"active"`
	RegisteredAt   time.Time    `db:"registered_at"`
	DeregisteredAt sql.NullTime `db:"deregistered_at"`
}

func (r *nodeRepo) Create(ctx context.Context, p fl.Participant) error {
	query := `INSERT INTO nodes (id, region, active, registered_at, deregistered_at)
		VALUES (:id, :region, :active, :registered_at, :deregistered_at)`

	if _, err := r.db.NamedExecContext(ctx, query, toDBNode(p)); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: node %s", pkgerrors.ErrEntityExists, p.ID)
		}

		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *nodeRepo) Get(ctx context.Context, id string) (fl.Participant, error) {
	query := `SELECT id, region, active, registered_at, deregistered_at FROM nodes WHERE id = ?`

	var dbn dbNode
	if err := r.db.GetContext(ctx, &dbn, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Participant{}, fmt.Errorf("%w: node %s", pkgerrors.ErrNotFound, id)
		}

		return fl.Participant{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return dbn.toParticipant(), nil
}

func (r *nodeRepo) Update(ctx context.Context, p fl.Participant) error {
	query := `UPDATE nodes SET region = :region, active = :active, registered_at = :registered_at,
		deregistered_at = :deregistered_at WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, toDBNode(p))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: node %s", pkgerrors.ErrNotFound, p.ID)
	}

	return nil
}

func (r *nodeRepo) List(ctx context.Context, offset, limit uint64) ([]fl.Participant, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM nodes"); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT id, region, active, registered_at, deregistered_at FROM nodes ORDER BY id LIMIT ? OFFSET ?`

	var rows []dbNode
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	nodes := make([]fl.Participant, len(rows))
	for i, row := range rows {
		nodes[i] = row.toParticipant()
	}

	return nodes, total, nil
}

func toDBNode(p fl.Participant) dbNode {
	return dbNode{
		ID:           p.ID,
		Region:       p.Region,
		Active:       p.Active,
		RegisteredAt: p.RegisteredAt,
		DeregisteredAt: sql.NullTime{
			Time:  p.DeregisteredAt,
			Valid: !p.DeregisteredAt.IsZero(),
		},
	}
}

func (n dbNode) toParticipant() fl.Participant {
	p := fl.Participant{
		ID:           n.ID,
		Region:       n.Region,
		Active:       n.Active,
		RegisteredAt: n.RegisteredAt.UTC(),
	}
	if n.DeregisteredAt.Valid {
		p.DeregisteredAt = n.DeregisteredAt.Time.UTC()
	}

	return p
}
