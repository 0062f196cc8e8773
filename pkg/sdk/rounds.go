package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const roundsEndpoint = "/rounds"

type RoundStatus struct {
	RoundID         uint64    `json:"round_id"`
	State           string    `json:"state"`
	AcceptedCount   int       `json:"accepted_count"`
	MinParticipants int       `json:"min_participants"`
	Deadline        time.Time `json:"deadline"`
	ModelVersion    uint64    `json:"model_version"`
}

// Update is one node's contribution to a round.
type Update struct {
	NodeID       string    `json:"node_id"            cbor:"node_id"`
	RoundID      uint64    `json:"round_id"           cbor:"round_id"`
	Weights      []float64 `json:"weights"            cbor:"weights"`
	SampleWeight float64   `json:"sample_weight"      cbor:"sample_weight"`
	Timestamp    time.Time `json:"timestamp,omitzero" cbor:"timestamp"`
}

type openRoundRequest struct {
	MinParticipants int     `json:"min_participants"`
	TimeoutSeconds  float64 `json:"timeout_seconds"`
}

func (sdk *fedSDK) OpenRound(minParticipants int, timeout time.Duration) (RoundStatus, error) {
	data, err := json.Marshal(openRoundRequest{
		MinParticipants: minParticipants,
		TimeoutSeconds:  timeout.Seconds(),
	})
	if err != nil {
		return RoundStatus{}, err
	}

	return sdk.roundRequest(http.MethodPost, sdk.coordinatorURL+roundsEndpoint, CTJSON, data, http.StatusCreated)
}

func (sdk *fedSDK) CurrentRound() (RoundStatus, error) {
	return sdk.roundRequest(http.MethodGet, sdk.coordinatorURL+roundsEndpoint+"/current", CTJSON, nil, http.StatusOK)
}

func (sdk *fedSDK) GetRound(roundID uint64) (RoundStatus, error) {
	return sdk.roundRequest(http.MethodGet, sdk.roundURL(roundID, ""), CTJSON, nil, http.StatusOK)
}

func (sdk *fedSDK) CloseRound(roundID uint64) (RoundStatus, error) {
	return sdk.roundRequest(http.MethodPost, sdk.roundURL(roundID, "/close"), CTJSON, nil, http.StatusOK)
}

func (sdk *fedSDK) AbortRound(roundID uint64) (RoundStatus, error) {
	return sdk.roundRequest(http.MethodPost, sdk.roundURL(roundID, "/abort"), CTJSON, nil, http.StatusOK)
}

func (sdk *fedSDK) SubmitUpdate(u Update) (RoundStatus, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return RoundStatus{}, err
	}

	return sdk.roundRequest(http.MethodPost, sdk.roundURL(u.RoundID, "/updates"), CTJSON, data, http.StatusOK)
}

func (sdk *fedSDK) SubmitUpdateCBOR(u Update) (RoundStatus, error) {
	data, err := cbor.Marshal(u)
	if err != nil {
		return RoundStatus{}, err
	}

	return sdk.roundRequest(http.MethodPost, sdk.roundURL(u.RoundID, "/updates/cbor"), CTCBOR, data, http.StatusOK)
}

func (sdk *fedSDK) roundURL(roundID uint64, suffix string) string {
	return fmt.Sprintf("%s%s/%d%s", sdk.coordinatorURL, roundsEndpoint, roundID, suffix)
}

func (sdk *fedSDK) roundRequest(method, reqURL, contentType string, data []byte, expected int) (RoundStatus, error) {
	body, err := sdk.processRequest(method, reqURL, contentType, data, expected)
	if err != nil {
		return RoundStatus{}, err
	}

	var rs RoundStatus
	if err := json.Unmarshal(body, &rs); err != nil {
		return RoundStatus{}, err
	}

	return rs, nil
}
