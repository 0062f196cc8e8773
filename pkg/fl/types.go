package fl

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Envelope carries one node's contribution for one round. Values are
// treated as immutable: constructors and accessors hand out copies of the
// weight vector.
type Envelope struct {
	NodeID       string    `json:"node_id"       cbor:"node_id"`
	RoundID      uint64    `json:"round_id"      cbor:"round_id"`
	Weights      []float64 `json:"weights"       cbor:"weights"`
	SampleWeight float64   `json:"sample_weight" cbor:"sample_weight"`
	Timestamp    time.Time `json:"timestamp"     cbor:"timestamp"`
}

func NewEnvelope(nodeID string, roundID uint64, weights []float64, sampleWeight float64, ts time.Time) Envelope {
	return Envelope{
		NodeID:       nodeID,
		RoundID:      roundID,
		Weights:      cloneVector(weights),
		SampleWeight: sampleWeight,
		Timestamp:    ts,
	}
}

// Validate checks the envelope against a model of dimension dim.
func (e Envelope) Validate(dim int) error {
	if e.NodeID == "" {
		return ErrNodeNotFound
	}
	if len(e.Weights) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e.Weights), dim)
	}
	if e.SampleWeight <= 0 || math.IsNaN(e.SampleWeight) || math.IsInf(e.SampleWeight, 0) {
		return ErrInvalidSampleWeight
	}

	return nil
}

func (e Envelope) clone() Envelope {
	e.Weights = cloneVector(e.Weights)

	return e
}

type Model struct {
	Version   uint64    `json:"version"`
	Weights   []float64 `json:"weights"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewModel returns the version 0 model: a zero vector of length dim.
func NewModel(dim int) Model {
	return Model{
		Version:   0,
		Weights:   make([]float64, dim),
		UpdatedAt: time.Now().UTC(),
	}
}

func (m Model) Clone() Model {
	m.Weights = cloneVector(m.Weights)

	return m
}

func (m Model) Dimension() int {
	return len(m.Weights)
}

type RoundState uint8

const (
	RoundOpen RoundState = iota
	RoundClosed
	RoundAggregated
	RoundAborted
)

var roundStateNames = [...]string{
	RoundOpen:       "open",
	RoundClosed:     "closed",
	RoundAggregated: "aggregated",
	RoundAborted:    "aborted",
}

func (s RoundState) String() string {
	if int(s) < len(roundStateNames) {
		return roundStateNames[s]
	}

	return fmt.Sprintf("unknown(%d)", s)
}

// Terminal reports whether no further transition is possible.
func (s RoundState) Terminal() bool {
	return s == RoundAggregated || s == RoundAborted
}

func (s RoundState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RoundState) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range roundStateNames {
		if n == name {
			*s = RoundState(i)

			return nil
		}
	}

	return fmt.Errorf("unknown round state %q", text)
}

type Round struct {
	ID              uint64              `json:"id"`
	State           RoundState          `json:"state"`
	OpenedAt        time.Time           `json:"opened_at"`
	Deadline        time.Time           `json:"deadline"`
	ClosedAt        time.Time           `json:"closed_at,omitzero"`
	MinParticipants int                 `json:"min_participants"`
	Dimension       int                 `json:"dimension"`
	ModelVersion    uint64              `json:"model_version"`
	Accepted        map[string]Envelope `json:"accepted"`
}

func (r Round) clone() Round {
	accepted := make(map[string]Envelope, len(r.Accepted))
	for id, env := range r.Accepted {
		accepted[id] = env.clone()
	}
	r.Accepted = accepted

	return r
}

// Envelopes returns the accepted envelopes ordered by node id.
func (r Round) Envelopes() []Envelope {
	ids := make([]string, 0, len(r.Accepted))
	for id := range r.Accepted {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	envs := make([]Envelope, 0, len(ids))
	for _, id := range ids {
		envs = append(envs, r.Accepted[id].clone())
	}

	return envs
}

func (r Round) Status() RoundStatus {
	return RoundStatus{
		RoundID:         r.ID,
		State:           r.State,
		AcceptedCount:   len(r.Accepted),
		MinParticipants: r.MinParticipants,
		Deadline:        r.Deadline,
		ModelVersion:    r.ModelVersion,
	}
}

type RoundStatus struct {
	RoundID         uint64     `json:"round_id"`
	State           RoundState `json:"state"`
	AcceptedCount   int        `json:"accepted_count"`
	MinParticipants int        `json:"min_participants"`
	Deadline        time.Time  `json:"deadline"`
	ModelVersion    uint64     `json:"model_version"`
}

// Participant is the coordinator's registry record of a node.
type Participant struct {
	ID             string    `json:"id"`
	Region         string    `json:"region"`
	Active         bool      `json:"active"`
	RegisteredAt   time.Time `json:"registered_at"`
	DeregisteredAt time.Time `json:"deregistered_at,omitzero"`
}

func cloneVector(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)

	return out
}
