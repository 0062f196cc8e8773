package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/pkg/api"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxBodySize = 1024 * 1024 * 32

	nodeIDKey  = "nodeID"
	roundIDKey = "roundID"
	versionKey = "version"
)

var errInvalidID = errors.New("invalid numeric id")

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/nodes", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			registerNodeEndpoint(svc),
			decodeRegisterNodeReq,
			api.EncodeResponse,
			opts...,
		), "register-node").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listNodesEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-nodes").ServeHTTP)
		r.Route("/{nodeID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getNodeEndpoint(svc),
				decodeEntityReq(nodeIDKey),
				api.EncodeResponse,
				opts...,
			), "get-node").ServeHTTP)
			r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
				deregisterNodeEndpoint(svc),
				decodeEntityReq(nodeIDKey),
				api.EncodeResponse,
				opts...,
			), "deregister-node").ServeHTTP)
		})
	})

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			openRoundEndpoint(svc),
			decodeOpenRoundReq,
			api.EncodeResponse,
			opts...,
		), "open-round").ServeHTTP)
		r.Get("/current", otelhttp.NewHandler(kithttp.NewServer(
			currentRoundEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "current-round").ServeHTTP)
		r.Route("/{roundID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getRoundEndpoint(svc),
				decodeRoundReq,
				api.EncodeResponse,
				opts...,
			), "get-round").ServeHTTP)
			r.Post("/close", otelhttp.NewHandler(kithttp.NewServer(
				closeRoundEndpoint(svc),
				decodeRoundReq,
				api.EncodeResponse,
				opts...,
			), "close-round").ServeHTTP)
			r.Post("/abort", otelhttp.NewHandler(kithttp.NewServer(
				abortRoundEndpoint(svc),
				decodeRoundReq,
				api.EncodeResponse,
				opts...,
			), "abort-round").ServeHTTP)
			r.Post("/updates", otelhttp.NewHandler(kithttp.NewServer(
				submitUpdateEndpoint(svc),
				decodeUpdateReq,
				api.EncodeResponse,
				opts...,
			), "submit-update").ServeHTTP)
			r.Post("/updates/cbor", otelhttp.NewHandler(kithttp.NewServer(
				submitUpdateCBOREndpoint(svc),
				decodeCBORUpdateReq,
				api.EncodeResponse,
				opts...,
			), "submit-update-cbor").ServeHTTP)
		})
	})

	mux.Route("/model", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			globalModelEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "get-global-model").ServeHTTP)
		r.Get("/versions/{version}", otelhttp.NewHandler(kithttp.NewServer(
			modelVersionEndpoint(svc),
			decodeModelVersionReq,
			api.EncodeResponse,
			opts...,
		), "get-model-version").ServeHTTP)
	})

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeRegisterNodeReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req registerNodeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeOpenRoundReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req openRoundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	id, err := readID(r, roundIDKey)
	if err != nil {
		return nil, err
	}

	return roundReq{roundID: id}, nil
}

func decodeUpdateReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}
	id, err := readID(r, roundIDKey)
	if err != nil {
		return nil, err
	}

	var req updateReq
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.roundID = id

	return req, nil
}

func decodeCBORUpdateReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.CBORContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}
	id, err := readID(r, roundIDKey)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return cborUpdateReq{
		roundID: id,
		data:    data,
	}, nil
}

func decodeModelVersionReq(_ context.Context, r *http.Request) (any, error) {
	v, err := readID(r, versionKey)
	if err != nil {
		return nil, err
	}

	return modelVersionReq{version: v}, nil
}

func readID(r *http.Request, key string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0, errors.Join(apiutil.ErrValidation, errInvalidID, err)
	}

	return id, nil
}
