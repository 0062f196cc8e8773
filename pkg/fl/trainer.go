package fl

import (
	"fmt"
	"math/rand/v2"
)

// Trainer produces a local weight vector from the node's data quality.
// Implementations must be deterministic for a given seed.
type Trainer interface {
	Train(quality float64, seed int64) ([]float64, error)
}

type TrainerFunc func(quality float64, seed int64) ([]float64, error)

func (f TrainerFunc) Train(quality float64, seed int64) ([]float64, error) {
	return f(quality, seed)
}

// GaussianTrainer simulates local training: a standard normal vector scaled
// by the data quality.
type GaussianTrainer struct {
	Dimension int
}

func NewGaussianTrainer(dim int) Trainer {
	return &GaussianTrainer{Dimension: dim}
}

func (g *GaussianTrainer) Train(quality float64, seed int64) ([]float64, error) {
	if g.Dimension <= 0 {
		return nil, fmt.Errorf("%w: trainer dimension %d", ErrDimensionMismatch, g.Dimension)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	weights := make([]float64, g.Dimension)
	for i := range weights {
		weights[i] = rng.NormFloat64() * quality
	}

	return weights, nil
}

// Noise is the privacy hook applied to a vector before it leaves the node.
type Noise func(weights []float64) []float64

func IdentityNoise(weights []float64) []float64 {
	return weights
}
