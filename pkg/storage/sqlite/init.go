package sqlite

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
)

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS nodes (
						id TEXT PRIMARY KEY,
						region TEXT NOT NULL DEFAULT '',
						active INTEGER NOT NULL DEFAULT 1,
						registered_at TIMESTAMP NOT NULL,
						deregistered_at TIMESTAMP
					)`,
					`CREATE TABLE IF NOT EXISTS models (
						version INTEGER PRIMARY KEY,
						weights TEXT NOT NULL,
						updated_at TIMESTAMP NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS rounds (
						id INTEGER PRIMARY KEY,
						state TEXT NOT NULL,
						body TEXT NOT NULL,
						updated_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_state ON rounds(state)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS rounds`,
					`DROP TABLE IF EXISTS models`,
					`DROP TABLE IF EXISTS nodes`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error

	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
