package coordinator_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agrovision/fedcore/coordinator"
	"github.com/agrovision/fedcore/coordinator/mocks"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSweeperRunsUntilCancelled(t *testing.T) {
	t.Parallel()
	svc := &mocks.MockService{}
	swept := make(chan struct{}, 8)
	svc.On("Sweep", mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return([]fl.RoundStatus{{RoundID: 3, State: fl.RoundAborted}}, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := coordinator.NewSweeper(svc, time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Start(ctx)
	}()

	select {
	case <-swept:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper never ran")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	svc.AssertCalled(t, "Sweep", mock.Anything)
}
