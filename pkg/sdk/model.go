package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const modelEndpoint = "/model"

type Model struct {
	Version   uint64    `json:"version"`
	Weights   []float64 `json:"weights"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (sdk *fedSDK) GlobalModel() (Model, error) {
	return sdk.modelRequest(sdk.coordinatorURL + modelEndpoint)
}

func (sdk *fedSDK) ModelVersion(version uint64) (Model, error) {
	return sdk.modelRequest(fmt.Sprintf("%s%s/versions/%d", sdk.coordinatorURL, modelEndpoint, version))
}

func (sdk *fedSDK) modelRequest(reqURL string) (Model, error) {
	body, err := sdk.processRequest(http.MethodGet, reqURL, CTJSON, nil, http.StatusOK)
	if err != nil {
		return Model{}, err
	}

	var m Model
	if err := json.Unmarshal(body, &m); err != nil {
		return Model{}, err
	}

	return m, nil
}
