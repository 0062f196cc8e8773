package api

import (
	"errors"
	"time"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/agrovision/fedcore/pkg/api"
	"github.com/agrovision/fedcore/pkg/fl"
)

// maxTimeoutSeconds bounds a round timeout to thirty days.
const maxTimeoutSeconds = 30 * 24 * 60 * 60

var (
	errInvalidTimeout = errors.New("timeout_seconds must be positive and at most 30 days")
	errInvalidMin     = errors.New("min_participants must not be negative")
	errMissingWeights = errors.New("missing weights")
	errLimitSize      = errors.New("limit exceeds maximum size")
	errEmptyPayload   = errors.New("empty update payload")
)

type registerNodeReq struct {
	ID     string `json:"id"`
	Region string `json:"region"`
}

func (req *registerNodeReq) validate() error {
	if req.ID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	if e.limit > api.MaxLimitSize {
		return errLimitSize
	}

	return nil
}

type openRoundReq struct {
	MinParticipants int     `json:"min_participants"`
	TimeoutSeconds  float64 `json:"timeout_seconds"`
}

func (req *openRoundReq) validate() error {
	if req.MinParticipants < 0 {
		return errInvalidMin
	}
	if !(req.TimeoutSeconds > 0 && req.TimeoutSeconds <= maxTimeoutSeconds) {
		return errInvalidTimeout
	}

	return nil
}

type roundReq struct {
	roundID uint64
}

type updateReq struct {
	roundID      uint64
	NodeID       string    `json:"node_id"`
	Weights      []float64 `json:"weights"`
	SampleWeight float64   `json:"sample_weight"`
}

func (req *updateReq) validate() error {
	if req.NodeID == "" {
		return apiutil.ErrMissingID
	}
	if len(req.Weights) == 0 {
		return errMissingWeights
	}

	return nil
}

func (req *updateReq) envelope() fl.Envelope {
	return fl.NewEnvelope(req.NodeID, req.roundID, req.Weights, req.SampleWeight, time.Time{})
}

type cborUpdateReq struct {
	roundID uint64
	data    []byte
}

func (req *cborUpdateReq) validate() error {
	if len(req.data) == 0 {
		return errEmptyPayload
	}

	return nil
}

type modelVersionReq struct {
	version uint64
}
