package fl

import "errors"

var (
	ErrDuplicateNode       = errors.New("node already registered")
	ErrNodeNotFound        = errors.New("node not registered")
	ErrNotReady            = errors.New("node has no local weights prepared")
	ErrDimensionMismatch   = errors.New("weight vector dimension mismatch")
	ErrRoundClosed         = errors.New("round is not accepting submissions")
	ErrQuorumNotMet        = errors.New("round timed out without reaching quorum")
	ErrQuorumPending       = errors.New("round has not reached quorum yet")
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundNotClosed      = errors.New("round must be closed before aggregation")
	ErrRoundInProgress     = errors.New("another round is still open")
	ErrInvalidRound        = errors.New("invalid round parameters")
	ErrInvalidSampleWeight = errors.New("sample weight must be a positive finite number")
	ErrInvalidQuality      = errors.New("data quality must be in (0, 1]")
	ErrNoUpdates           = errors.New("no updates provided for aggregation")
	ErrUnknownAggregator   = errors.New("unknown aggregation strategy")
	ErrModelNotFound       = errors.New("model version not found")
)
