package fl

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Coordinator is the only writer of the global model. Readers always get a
// snapshot of a fully published version.
type Coordinator struct {
	mu         sync.RWMutex
	model      Model
	aggregator Aggregator
	now        Clock
}

func NewCoordinator(initial Model, aggregator Aggregator) *Coordinator {
	if aggregator == nil {
		aggregator = NewFedAvgAggregator()
	}

	return &Coordinator{
		model:      initial.Clone(),
		aggregator: aggregator,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Aggregate folds the accepted envelopes of a Closed round into a new model
// version. A round with no accepted envelopes leaves the model untouched and
// reports applied=false.
func (c *Coordinator) Aggregate(r Round) (Model, bool, error) {
	if r.State != RoundClosed {
		return Model{}, false, fmt.Errorf("%w: round %d is %s", ErrRoundNotClosed, r.ID, r.State)
	}

	envelopes := r.Envelopes()
	weights, err := c.aggregator.Aggregate(envelopes)
	switch {
	case errors.Is(err, ErrNoUpdates):
		return c.GlobalModel(), false, nil
	case err != nil:
		return Model{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(weights) != len(c.model.Weights) {
		return Model{}, false, fmt.Errorf("%w: aggregate has %d, model has %d", ErrDimensionMismatch, len(weights), len(c.model.Weights))
	}
	c.model = Model{
		Version:   c.model.Version + 1,
		Weights:   weights,
		UpdatedAt: c.now(),
	}

	return c.model.Clone(), true, nil
}

func (c *Coordinator) GlobalModel() Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.model.Clone()
}

func (c *Coordinator) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.model.Weights)
}
