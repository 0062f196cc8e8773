package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agrovision/fedcore/pkg/fl"
)

var (
	ErrNoTrainer          = errors.New("node has no trainer configured")
	ErrTrainingInProgress = errors.New("local training already in progress")
)

type Status uint8

const (
	StatusIdle Status = iota
	StatusTraining
	StatusReady
	StatusSubmitted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusTraining:
		return "training"
	case StatusReady:
		return "ready"
	case StatusSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

type Option func(*Node)

func WithTrainer(t fl.Trainer) Option {
	return func(n *Node) {
		n.trainer = t
	}
}

// WithNoise installs the privacy hook applied to weights before they are
// packaged. The default is fl.IdentityNoise.
func WithNoise(noise fl.Noise) Option {
	return func(n *Node) {
		n.noise = noise
	}
}

func WithSeed(seed int64) Option {
	return func(n *Node) {
		n.seed = seed
	}
}

// WithSampleWeight overrides how the envelope's sample weight is derived from
// the data quality. By default the quality itself is used.
func WithSampleWeight(fn func(quality float64) float64) Option {
	return func(n *Node) {
		n.sampleWeight = fn
	}
}

// Node is one edge participant. Every node owns its state; nothing is
// shared between nodes.
type Node struct {
	id     string
	region string

	trainer      fl.Trainer
	noise        fl.Noise
	seed         int64
	sampleWeight func(float64) float64

	mu        sync.Mutex
	status    Status
	quality   float64
	weights   []float64
	trainings int64
}

func New(id, region string, opts ...Option) *Node {
	n := &Node{
		id:           id,
		region:       region,
		noise:        fl.IdentityNoise,
		sampleWeight: func(q float64) float64 { return q },
		status:       StatusIdle,
	}
	for _, opt := range opts {
		opt(n)
	}

	return n
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Region() string {
	return n.region
}

func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.status
}

func (n *Node) DataQuality() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.quality
}

// TrainLocally runs the trainer for the given data quality and keeps the
// resulting weights for the next PrepareUpdate. On failure the node returns
// to the status it had before training.
func (n *Node) TrainLocally(quality float64) error {
	if !(quality > 0 && quality <= 1) {
		return fmt.Errorf("%w: %v", fl.ErrInvalidQuality, quality)
	}
	if n.trainer == nil {
		return ErrNoTrainer
	}

	n.mu.Lock()
	if n.status == StatusTraining {
		n.mu.Unlock()

		return ErrTrainingInProgress
	}
	prev := n.status
	n.status = StatusTraining
	seed := n.seed + n.trainings
	n.mu.Unlock()

	weights, err := n.trainer.Train(quality, seed)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		n.status = prev

		return fmt.Errorf("local training failed: %w", err)
	}
	n.weights = weights
	n.quality = quality
	n.trainings++
	n.status = StatusReady

	return nil
}

// PrepareUpdate packages the trained weights for roundID. Calling it again
// re-packages the same weights, which is how a node resubmits.
func (n *Node) PrepareUpdate(roundID uint64) (fl.Envelope, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusTraining {
		return fl.Envelope{}, ErrTrainingInProgress
	}
	if n.weights == nil {
		return fl.Envelope{}, fl.ErrNotReady
	}

	weights := make([]float64, len(n.weights))
	copy(weights, n.weights)
	weights = n.noise(weights)

	env := fl.NewEnvelope(n.id, roundID, weights, n.sampleWeight(n.quality), time.Now().UTC())
	n.status = StatusSubmitted

	return env, nil
}
