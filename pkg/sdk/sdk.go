package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	CTJSON string = "application/json"
	CTCBOR string = "application/cbor"
)

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// RegisterNode adds a node to the coordinator registry.
	//
	// example:
	//  node, _ := sdk.RegisterNode("farm-1", "eu-west")
	//  fmt.Println(node)
	RegisterNode(id, region string) (Node, error)

	// GetNode gets a node by id.
	//
	// example:
	//  node, _ := sdk.GetNode("farm-1")
	//  fmt.Println(node)
	GetNode(id string) (Node, error)

	// ListNodes lists registered nodes.
	//
	// example:
	//  page, _ := sdk.ListNodes(0, 10)
	//  fmt.Println(page)
	ListNodes(offset, limit uint64) (NodePage, error)

	// DeregisterNode marks a node inactive. Its past contributions are kept.
	//
	// example:
	//  _ = sdk.DeregisterNode("farm-1")
	DeregisterNode(id string) error

	// OpenRound starts a training round.
	//
	// example:
	//  round, _ := sdk.OpenRound(3, 5*time.Minute)
	//  fmt.Println(round.RoundID)
	OpenRound(minParticipants int, timeout time.Duration) (RoundStatus, error)

	// CurrentRound returns the open round.
	CurrentRound() (RoundStatus, error)

	// GetRound returns the status of any round, including archived ones.
	GetRound(roundID uint64) (RoundStatus, error)

	// CloseRound closes a round and aggregates its updates.
	CloseRound(roundID uint64) (RoundStatus, error)

	// AbortRound discards a round and its updates.
	AbortRound(roundID uint64) (RoundStatus, error)

	// SubmitUpdate posts a local update as JSON.
	//
	// example:
	//  status, _ := sdk.SubmitUpdate(sdk.Update{
	//    NodeID:       "farm-1",
	//    RoundID:      4,
	//    Weights:      []float64{0.1, 0.2},
	//    SampleWeight: 0.8,
	//  })
	SubmitUpdate(u Update) (RoundStatus, error)

	// SubmitUpdateCBOR posts a local update encoded as CBOR.
	SubmitUpdateCBOR(u Update) (RoundStatus, error)

	// GlobalModel returns the current global model.
	GlobalModel() (Model, error)

	// ModelVersion returns a specific model version.
	ModelVersion(version uint64) (Model, error)
}

type fedSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
	Timeout         time.Duration
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		coordinatorURL: strings.TrimSuffix(cfg.CoordinatorURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

// Error is returned for any response other than the expected status. Reason
// carries the coordinator's explanation.
type Error struct {
	StatusCode int
	Reason     string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unexpected response code: %d", e.StatusCode)
	}

	return fmt.Sprintf("unexpected response code: %d: %s", e.StatusCode, e.Reason)
}

// Is matches coordinator sentinel errors by their message, so callers can
// use errors.Is(err, fl.ErrRoundClosed) across the HTTP boundary.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.StatusCode == e.StatusCode
	}

	return e.Reason != "" && strings.Contains(e.Reason, target.Error())
}

type errorBody struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

func (sdk *fedSDK) processRequest(method, reqURL, contentType string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", contentType)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)

		return []byte{}, &Error{StatusCode: resp.StatusCode, Reason: eb.Reason}
	}

	return body, nil
}
