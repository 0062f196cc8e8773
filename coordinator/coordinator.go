package coordinator

import (
	"context"
	"time"

	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/mqtt"
)

const (
	TopicRoundOpen    = "rounds/open"
	TopicRoundNext    = "rounds/next"
	TopicRoundAborted = "rounds/aborted"
	TopicRegister     = mqtt.TopicRegister
	TopicUpdates      = mqtt.TopicUpdates
)

type Service interface {
	RegisterNode(ctx context.Context, id, region string) (fl.Participant, error)
	DeregisterNode(ctx context.Context, id string) error
	GetNode(ctx context.Context, id string) (fl.Participant, error)
	ListNodes(ctx context.Context, offset, limit uint64) (NodePage, error)

	// OpenRound starts a round against the current global model. Only one
	// round may be open at a time.
	OpenRound(ctx context.Context, minParticipants int, timeout time.Duration) (fl.RoundStatus, error)
	CurrentRound(ctx context.Context) (fl.RoundStatus, error)
	GetRoundStatus(ctx context.Context, roundID uint64) (fl.RoundStatus, error)
	SubmitUpdate(ctx context.Context, env fl.Envelope) (fl.RoundStatus, error)
	SubmitUpdateCBOR(ctx context.Context, roundID uint64, data []byte) (fl.RoundStatus, error)
	// CloseRound ends the round and aggregates it when quorum is met.
	CloseRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error)
	AbortRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error)

	GetGlobalModel(ctx context.Context) (fl.Model, error)
	GetModelVersion(ctx context.Context, version uint64) (fl.Model, error)

	// Sweep applies the timeout rule to expired rounds and returns the ones
	// that changed state.
	Sweep(ctx context.Context) ([]fl.RoundStatus, error)
	// Restore loads the persisted model and round. It must complete before
	// the service handles requests.
	Restore(ctx context.Context) error
	Subscribe(ctx context.Context) error
}

// Archive keeps history that outlives the in-memory round controller.
type Archive interface {
	SaveModel(m fl.Model) error
	LoadModel(version uint64) (fl.Model, error)
	SaveRound(r fl.Round) error
	LoadRound(roundID uint64) (fl.Round, error)
}

type NodePage struct {
	Offset uint64           `json:"offset"`
	Limit  uint64           `json:"limit"`
	Total  uint64           `json:"total"`
	Nodes  []fl.Participant `json:"nodes"`
}

type RoundOpened struct {
	RoundID         uint64    `json:"round_id"`
	MinParticipants int       `json:"min_participants"`
	Deadline        time.Time `json:"deadline"`
	ModelVersion    uint64    `json:"model_version"`
	Dimension       int       `json:"dimension"`
}

type ModelPublished struct {
	RoundID       uint64    `json:"round_id"`
	ModelVersion  uint64    `json:"model_version"`
	AcceptedCount int       `json:"accepted_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RoundAborted struct {
	RoundID         uint64 `json:"round_id"`
	MinParticipants int    `json:"min_participants"`
	Reason          string `json:"reason"`
}
