package api

import (
	"context"
	"errors"
	"time"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/agrovision/fedcore/coordinator"
	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func registerNodeEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(registerNodeReq)
		if !ok {
			return registerNodeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return registerNodeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		node, err := svc.RegisterNode(ctx, req.ID, req.Region)
		if err != nil {
			return registerNodeResponse{}, err
		}

		return registerNodeResponse{
			Accepted: true,
			Node:     node,
		}, nil
	}
}

func listNodesEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listNodesResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listNodesResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListNodes(ctx, req.offset, req.limit)
		if err != nil {
			return listNodesResponse{}, err
		}

		return listNodesResponse{
			NodePage: page,
		}, nil
	}
}

func getNodeEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		node, err := svc.GetNode(ctx, req.id)
		if err != nil {
			return nodeResponse{}, err
		}

		return nodeResponse{
			Participant: node,
		}, nil
	}
}

func deregisterNodeEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.DeregisterNode(ctx, req.id); err != nil {
			return nodeResponse{}, err
		}

		return nodeResponse{
			deleted: true,
		}, nil
	}
}

func openRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(openRoundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		timeout := time.Duration(req.TimeoutSeconds * float64(time.Second))
		status, err := svc.OpenRound(ctx, req.MinParticipants, timeout)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			RoundStatus: status,
			created:     true,
		}, nil
	}
}

func currentRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		status, err := svc.CurrentRound(ctx)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			RoundStatus: status,
		}, nil
	}
}

func getRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		status, err := svc.GetRoundStatus(ctx, req.roundID)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			RoundStatus: status,
		}, nil
	}
}

func closeRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		status, err := svc.CloseRound(ctx, req.roundID)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			RoundStatus: status,
		}, nil
	}
}

func abortRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		status, err := svc.AbortRound(ctx, req.roundID)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			RoundStatus: status,
		}, nil
	}
}

func submitUpdateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(updateReq)
		if !ok {
			return updateResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return updateResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		status, err := svc.SubmitUpdate(ctx, req.envelope())
		if err != nil {
			return updateResponse{}, err
		}

		return updateResponse{
			Accepted:    true,
			RoundStatus: status,
		}, nil
	}
}

func submitUpdateCBOREndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(cborUpdateReq)
		if !ok {
			return updateResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return updateResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		status, err := svc.SubmitUpdateCBOR(ctx, req.roundID, req.data)
		if err != nil {
			return updateResponse{}, err
		}

		return updateResponse{
			Accepted:    true,
			RoundStatus: status,
		}, nil
	}
}

func globalModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		model, err := svc.GetGlobalModel(ctx)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Model: model,
		}, nil
	}
}

func modelVersionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(modelVersionReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		model, err := svc.GetModelVersion(ctx, req.version)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Model: model,
		}, nil
	}
}
