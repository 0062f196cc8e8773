package testutil

import (
	"time"

	"github.com/agrovision/fedcore/pkg/fl"
)

func TestParticipant(id string) fl.Participant {
	return fl.Participant{
		ID:           id,
		Region:       "region-" + id,
		Active:       true,
		RegisteredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestModel(version uint64) fl.Model {
	return fl.Model{
		Version:   version,
		Weights:   []float64{float64(version), 0.5, -1},
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestRound(id uint64, state fl.RoundState) fl.Round {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return fl.Round{
		ID:              id,
		State:           state,
		OpenedAt:        now,
		Deadline:        now.Add(time.Minute),
		MinParticipants: 2,
		Dimension:       3,
		Accepted: map[string]fl.Envelope{
			"node-a": fl.NewEnvelope("node-a", id, []float64{1, 2, 3}, 0.7, now),
		},
	}
}
