package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const nodesEndpoint = "/nodes"

type Node struct {
	ID             string    `json:"id"`
	Region         string    `json:"region,omitempty"`
	Active         bool      `json:"active"`
	RegisteredAt   time.Time `json:"registered_at"`
	DeregisteredAt time.Time `json:"deregistered_at,omitzero"`
}

type NodePage struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Total  uint64 `json:"total"`
	Nodes  []Node `json:"nodes"`
}

type registerResponse struct {
	Accepted bool `json:"accepted"`
	Node     Node `json:"node"`
}

func (sdk *fedSDK) RegisterNode(id, region string) (Node, error) {
	data, err := json.Marshal(map[string]string{"id": id, "region": region})
	if err != nil {
		return Node{}, err
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.coordinatorURL+nodesEndpoint, CTJSON, data, http.StatusCreated)
	if err != nil {
		return Node{}, err
	}

	var resp registerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Node{}, err
	}

	return resp.Node, nil
}

func (sdk *fedSDK) GetNode(id string) (Node, error) {
	reqURL := sdk.coordinatorURL + nodesEndpoint + "/" + url.PathEscape(id)

	body, err := sdk.processRequest(http.MethodGet, reqURL, CTJSON, nil, http.StatusOK)
	if err != nil {
		return Node{}, err
	}

	var n Node
	if err := json.Unmarshal(body, &n); err != nil {
		return Node{}, err
	}

	return n, nil
}

func (sdk *fedSDK) ListNodes(offset, limit uint64) (NodePage, error) {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	query := ""
	if len(queries) > 0 {
		query = "?" + strings.Join(queries, "&")
	}

	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+nodesEndpoint+query, CTJSON, nil, http.StatusOK)
	if err != nil {
		return NodePage{}, err
	}

	var page NodePage
	if err := json.Unmarshal(body, &page); err != nil {
		return NodePage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) DeregisterNode(id string) error {
	reqURL := sdk.coordinatorURL + nodesEndpoint + "/" + url.PathEscape(id)

	if _, err := sdk.processRequest(http.MethodDelete, reqURL, CTJSON, nil, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}
