package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/agrovision/fedcore/pkg/fl"
	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 100

	ContentType     = "application/json"
	CBORContentType = "application/cbor"

	MaxLimitSize = 100
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(StatusCode(err))

	if err := json.NewEncoder(w).Encode(ErrorResponse{Accepted: false, Reason: err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// StatusCode maps a service or transport error to its HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, apiutil.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, pkgerrors.ErrEmptyKey),
		errors.Is(err, pkgerrors.ErrInvalidData),
		errors.Is(err, fl.ErrDimensionMismatch),
		errors.Is(err, fl.ErrInvalidSampleWeight),
		errors.Is(err, fl.ErrInvalidRound):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrNotFound),
		errors.Is(err, fl.ErrNodeNotFound),
		errors.Is(err, fl.ErrRoundNotFound),
		errors.Is(err, fl.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, fl.ErrDuplicateNode),
		errors.Is(err, pkgerrors.ErrEntityExists),
		errors.Is(err, fl.ErrRoundClosed),
		errors.Is(err, fl.ErrQuorumNotMet),
		errors.Is(err, fl.ErrQuorumPending),
		errors.Is(err, fl.ErrRoundInProgress),
		errors.Is(err, fl.ErrRoundNotClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
