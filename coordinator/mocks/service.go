package mocks

import (
	"context"
	"time"

	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*MockService)(nil)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) RegisterNode(ctx context.Context, id, region string) (fl.Participant, error) {
	args := m.Called(ctx, id, region)

	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *MockService) DeregisterNode(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockService) GetNode(ctx context.Context, id string) (fl.Participant, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *MockService) ListNodes(ctx context.Context, offset, limit uint64) (coordinator.NodePage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(coordinator.NodePage), args.Error(1)
}

func (m *MockService) OpenRound(ctx context.Context, minParticipants int, timeout time.Duration) (fl.RoundStatus, error) {
	args := m.Called(ctx, minParticipants, timeout)

	return args.Get(0).(fl.RoundStatus), args.Error(1)
}

func (m *MockService) CurrentRound(ctx context.Context) (fl.RoundStatus, error) {
	args := m.Called(ctx)

	return args.Get(0).(fl.RoundStatus), args.Error(1)
}

func (m *MockService) GetRoundStatus(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	args := m.Called(ctx, roundID)

	return args.Get(0).(fl.RoundStatus), args.Error(1)
}

func (m *MockService) SubmitUpdate(ctx context.Context, env fl.Envelope) (fl.RoundStatus, error) {
	args := m.Called(ctx, env)

	return args.Get(0).(fl.RoundStatus), args.Error(1)
}

func (m *MockService) SubmitUpdateCBOR(ctx context.Context, roundID uint64, data []byte) (fl.RoundStatus, error) {
	args := m.Called(ctx, roundID, data)

	return args.Get(0).(fl.RoundStatus), args.Error(1)
}

func (m *MockService) CloseRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	args := m.Called(ctx, roundID)

	return args.Get(0).(fl.RoundStatus), args.Error(1)
}

func (m *MockService) AbortRound(ctx context.Context, roundID uint64) (fl.RoundStatus, error) {
	args := m.Called(ctx, roundID)

	return args.Get(0).(fl.RoundStatus), args.Error(1)
}

func (m *MockService) GetGlobalModel(ctx context.Context) (fl.Model, error) {
	args := m.Called(ctx)

	return args.Get(0).(fl.Model), args.Error(1)
}

func (m *MockService) GetModelVersion(ctx context.Context, version uint64) (fl.Model, error) {
	args := m.Called(ctx, version)

	return args.Get(0).(fl.Model), args.Error(1)
}

func (m *MockService) Sweep(ctx context.Context) ([]fl.RoundStatus, error) {
	args := m.Called(ctx)
	statuses, _ := args.Get(0).([]fl.RoundStatus)

	return statuses, args.Error(1)
}

func (m *MockService) Restore(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockService) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
