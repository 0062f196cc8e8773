package storage

import (
	"fmt"
	"io"

	"github.com/agrovision/fedcore/pkg/storage/badger"
	"github.com/agrovision/fedcore/pkg/storage/sqlite"
)

type Config struct {
	Type       string `env:"COORDINATOR_STORAGE_TYPE" envDefault:"memory"`
	SQLitePath string `env:"COORDINATOR_SQLITE_PATH"  envDefault:"./fedcore.db"`
	BadgerPath string `env:"COORDINATOR_BADGER_PATH"  envDefault:"./data/badger"`
}

type Repositories struct {
	Nodes  NodeRepository
	Models ModelRepository
	Rounds RoundRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "memory", "":
		return NewMemoryRepositories(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Nodes:  sqlite.NewNodeRepository(db),
		Models: sqlite.NewModelRepository(db),
		Rounds: sqlite.NewRoundRepository(db),
		Closer: db,
	}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Nodes:  badger.NewNodeRepository(db),
		Models: badger.NewModelRepository(db),
		Rounds: badger.NewRoundRepository(db),
		Closer: db,
	}, nil
}

func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Nodes:  newMemoryNodeRepository(NewInMemoryStorage()),
		Models: newMemoryModelRepository(),
		Rounds: newMemoryRoundRepository(),
	}
}
