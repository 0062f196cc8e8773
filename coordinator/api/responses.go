package api

import (
	"fmt"
	"net/http"

	"github.com/absmach/supermq"
	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/pkg/fl"
)

var (
	_ supermq.Response = (*registerNodeResponse)(nil)
	_ supermq.Response = (*nodeResponse)(nil)
	_ supermq.Response = (*listNodesResponse)(nil)
	_ supermq.Response = (*roundResponse)(nil)
	_ supermq.Response = (*updateResponse)(nil)
	_ supermq.Response = (*modelResponse)(nil)
)

type registerNodeResponse struct {
	Accepted bool           `json:"accepted"`
	Node     fl.Participant `json:"node"`
}

func (r registerNodeResponse) Code() int {
	return http.StatusCreated
}

func (r registerNodeResponse) Headers() map[string]string {
	return map[string]string{
		"Location": "/nodes/" + r.Node.ID,
	}
}

func (r registerNodeResponse) Empty() bool {
	return false
}

type nodeResponse struct {
	fl.Participant
	deleted bool
}

func (n nodeResponse) Code() int {
	if n.deleted {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (n nodeResponse) Headers() map[string]string {
	return map[string]string{}
}

func (n nodeResponse) Empty() bool {
	return n.deleted
}

type listNodesResponse struct {
	coordinator.NodePage
}

func (l listNodesResponse) Code() int {
	return http.StatusOK
}

func (l listNodesResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listNodesResponse) Empty() bool {
	return false
}

type roundResponse struct {
	fl.RoundStatus
	created bool
}

func (r roundResponse) Code() int {
	if r.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (r roundResponse) Headers() map[string]string {
	if r.created {
		return map[string]string{
			"Location": fmt.Sprintf("/rounds/%d", r.RoundID),
		}
	}

	return map[string]string{}
}

func (r roundResponse) Empty() bool {
	return false
}

type updateResponse struct {
	Accepted bool `json:"accepted"`
	fl.RoundStatus
}

func (u updateResponse) Code() int {
	return http.StatusOK
}

func (u updateResponse) Headers() map[string]string {
	return map[string]string{}
}

func (u updateResponse) Empty() bool {
	return false
}

type modelResponse struct {
	fl.Model
}

func (m modelResponse) Code() int {
	return http.StatusOK
}

func (m modelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (m modelResponse) Empty() bool {
	return false
}
