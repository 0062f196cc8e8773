package fl

import "fmt"

const (
	StrategyFedAvg = "fedavg"
	StrategyMean   = "mean"
)

type Aggregator interface {
	Aggregate(envelopes []Envelope) ([]float64, error)
}

// NewAggregator resolves a strategy name. An empty name selects FedAvg.
func NewAggregator(strategy string) (Aggregator, error) {
	switch strategy {
	case "", StrategyFedAvg:
		return NewFedAvgAggregator(), nil
	case StrategyMean:
		return NewMeanAggregator(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAggregator, strategy)
	}
}

// FedAvgAggregator computes the sample-weighted mean of the accepted vectors.
type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(envelopes []Envelope) ([]float64, error) {
	dim, err := commonDimension(envelopes)
	if err != nil {
		return nil, err
	}

	aggregated := make([]float64, dim)
	var total float64
	for _, env := range envelopes {
		if env.SampleWeight <= 0 {
			return nil, fmt.Errorf("%w: node %s", ErrInvalidSampleWeight, env.NodeID)
		}
		total += env.SampleWeight
		for j, v := range env.Weights {
			aggregated[j] += env.SampleWeight * v
		}
	}

	for j := range aggregated {
		aggregated[j] /= total
	}

	return aggregated, nil
}

// MeanAggregator ignores sample weights and averages coordinates uniformly.
type MeanAggregator struct{}

func NewMeanAggregator() Aggregator {
	return &MeanAggregator{}
}

func (m *MeanAggregator) Aggregate(envelopes []Envelope) ([]float64, error) {
	dim, err := commonDimension(envelopes)
	if err != nil {
		return nil, err
	}

	aggregated := make([]float64, dim)
	for _, env := range envelopes {
		for j, v := range env.Weights {
			aggregated[j] += v
		}
	}

	n := float64(len(envelopes))
	for j := range aggregated {
		aggregated[j] /= n
	}

	return aggregated, nil
}

func commonDimension(envelopes []Envelope) (int, error) {
	if len(envelopes) == 0 {
		return 0, ErrNoUpdates
	}

	dim := len(envelopes[0].Weights)
	for _, env := range envelopes[1:] {
		if len(env.Weights) != dim {
			return 0, fmt.Errorf("%w: node %s has %d, want %d", ErrDimensionMismatch, env.NodeID, len(env.Weights), dim)
		}
	}

	return dim, nil
}
