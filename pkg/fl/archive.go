package fl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FileArchive keeps every published model version and every terminal round
// as JSON documents on disk.
type FileArchive struct {
	roundsDir string
	modelsDir string
	mu        sync.RWMutex
}

func NewFileArchive(dir string) (*FileArchive, error) {
	roundsDir := filepath.Join(dir, "rounds")
	modelsDir := filepath.Join(dir, "models")

	if err := os.MkdirAll(roundsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rounds directory: %w", err)
	}
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return &FileArchive{
		roundsDir: roundsDir,
		modelsDir: modelsDir,
	}, nil
}

func (fa *FileArchive) SaveRound(r Round) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	return writeJSON(fa.roundPath(r.ID), r)
}

func (fa *FileArchive) LoadRound(roundID uint64) (Round, error) {
	fa.mu.RLock()
	defer fa.mu.RUnlock()

	var r Round
	if err := readJSON(fa.roundPath(roundID), &r); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Round{}, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
		}

		return Round{}, err
	}

	return r, nil
}

// ListRounds returns archived round ids in ascending order.
func (fa *FileArchive) ListRounds() ([]uint64, error) {
	fa.mu.RLock()
	defer fa.mu.RUnlock()

	return listIDs(fa.roundsDir, "round_%d.json")
}

func (fa *FileArchive) SaveModel(m Model) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	return writeJSON(fa.modelPath(m.Version), m)
}

func (fa *FileArchive) LoadModel(version uint64) (Model, error) {
	fa.mu.RLock()
	defer fa.mu.RUnlock()

	var m Model
	if err := readJSON(fa.modelPath(version), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Model{}, fmt.Errorf("%w: v%d", ErrModelNotFound, version)
		}

		return Model{}, err
	}

	return m, nil
}

// ListModels returns archived model versions in ascending order.
func (fa *FileArchive) ListModels() ([]uint64, error) {
	fa.mu.RLock()
	defer fa.mu.RUnlock()

	return listIDs(fa.modelsDir, "model_v%d.json")
}

func (fa *FileArchive) roundPath(id uint64) string {
	return filepath.Join(fa.roundsDir, fmt.Sprintf("round_%d.json", id))
}

func (fa *FileArchive) modelPath(version uint64) string {
	return filepath.Join(fa.modelsDir, fmt.Sprintf("model_v%d.json", version))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}

	return nil
}

func listIDs(dir, format string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var id uint64
		if _, err := fmt.Sscanf(entry.Name(), format, &id); err == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	return ids, nil
}
