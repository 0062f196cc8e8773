package node_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/coordinator/api"
	"github.com/agrovision/fedcore/node"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/sdk"
	"github.com/agrovision/fedcore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) RegisterNode(id, region string) (sdk.Node, error) {
	args := m.Called(id, region)

	return args.Get(0).(sdk.Node), args.Error(1)
}

func (m *mockClient) CurrentRound() (sdk.RoundStatus, error) {
	args := m.Called()

	return args.Get(0).(sdk.RoundStatus), args.Error(1)
}

func (m *mockClient) SubmitUpdate(u sdk.Update) (sdk.RoundStatus, error) {
	args := m.Called(u)

	return args.Get(0).(sdk.RoundStatus), args.Error(1)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newAgent(client node.Client) *node.Agent {
	n := node.New("farm-1", "eu-west", node.WithTrainer(fl.NewGaussianTrainer(2)))

	return node.NewAgent(n, client, node.AgentConfig{
		DataQuality:  0.5,
		PollInterval: 10 * time.Millisecond,
		RetryBase:    time.Millisecond,
		MaxRetries:   3,
	}, discard)
}

func TestAgentRegister(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		resps []error
		calls int
		err   error
	}{
		{desc: "fresh registration", resps: []error{nil}, calls: 1},
		{desc: "already registered", resps: []error{&sdk.Error{StatusCode: http.StatusConflict, Reason: fl.ErrDuplicateNode.Error()}}, calls: 1},
		{desc: "transient failure then success", resps: []error{&sdk.Error{StatusCode: http.StatusBadGateway}, nil}, calls: 2},
		{
			desc:  "client error is not retried",
			resps: []error{&sdk.Error{StatusCode: http.StatusBadRequest, Reason: "bad id"}},
			calls: 1,
			err:   &sdk.Error{StatusCode: http.StatusBadRequest},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			client := &mockClient{}
			for _, resp := range tc.resps {
				client.On("RegisterNode", "farm-1", "eu-west").Return(sdk.Node{ID: "farm-1"}, resp).Once()
			}

			err := newAgent(client).Register(context.Background())
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}
			client.AssertNumberOfCalls(t, "RegisterNode", tc.calls)
		})
	}
}

func TestAgentPoll(t *testing.T) {
	t.Parallel()

	round := sdk.RoundStatus{RoundID: 3, State: "open", MinParticipants: 2}
	closedErr := &sdk.Error{StatusCode: http.StatusConflict, Reason: fl.ErrRoundClosed.Error() + ": round 3"}
	noRound := &sdk.Error{StatusCode: http.StatusNotFound, Reason: fl.ErrRoundNotFound.Error() + ": no open round"}

	cases := []struct {
		desc      string
		current   error
		submit    error
		submitted bool
		err       bool
	}{
		{desc: "no open round", current: noRound},
		{desc: "accepted update", submitted: true},
		{desc: "straggler", submit: closedErr},
		{desc: "coordinator unavailable", current: errors.New("connection refused"), err: true},
		{desc: "rejected update", submit: &sdk.Error{StatusCode: http.StatusBadRequest, Reason: fl.ErrDimensionMismatch.Error()}, err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			client := &mockClient{}
			client.On("CurrentRound").Return(round, tc.current)
			client.On("SubmitUpdate", mock.MatchedBy(func(u sdk.Update) bool {
				return u.NodeID == "farm-1" && u.RoundID == 3 && len(u.Weights) == 2 && u.SampleWeight == 0.5
			})).Return(round, tc.submit)

			agent := newAgent(client)
			submitted, err := agent.Poll(context.Background())
			assert.Equal(t, tc.submitted, submitted)
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAgentSubmitsOncePerRound(t *testing.T) {
	t.Parallel()

	round := sdk.RoundStatus{RoundID: 8, State: "open"}
	client := &mockClient{}
	client.On("CurrentRound").Return(round, nil)
	client.On("SubmitUpdate", mock.Anything).Return(round, nil)

	agent := newAgent(client)
	for range 3 {
		_, err := agent.Poll(context.Background())
		require.NoError(t, err)
	}
	client.AssertNumberOfCalls(t, "SubmitUpdate", 1)
}

func TestAgentAgainstCoordinator(t *testing.T) {
	t.Parallel()

	archive, err := fl.NewFileArchive(t.TempDir())
	require.NoError(t, err)
	svc, err := coordinator.NewService(coordinator.Config{Dimension: 2, AutoClose: true}, storage.NewMemoryRepositories(), archive, nil, discard)
	require.NoError(t, err)
	require.NoError(t, svc.Restore(context.Background()))

	ts := httptest.NewServer(api.MakeHandler(svc, discard, "agent-test"))
	t.Cleanup(ts.Close)
	client := sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL, Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 2)
	for i, id := range []string{"farm-a", "farm-b"} {
		n := node.New(id, "eu-west", node.WithTrainer(fl.NewGaussianTrainer(2)), node.WithSeed(int64(i+1)))
		agent := node.NewAgent(n, client, node.AgentConfig{
			DataQuality:  0.5,
			PollInterval: 20 * time.Millisecond,
			RetryBase:    time.Millisecond,
			MaxRetries:   3,
		}, discard)
		go func() {
			done <- agent.Start(ctx)
		}()
	}

	require.Eventually(t, func() bool {
		page, err := svc.ListNodes(ctx, 0, 10)

		return err == nil && page.Total == 2
	}, 5*time.Second, 10*time.Millisecond)

	_, err = svc.OpenRound(ctx, 2, time.Minute)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		model, err := svc.GetGlobalModel(ctx)

		return err == nil && model.Version == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	for range 2 {
		assert.NoError(t, <-done)
	}
}
