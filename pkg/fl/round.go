package fl

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type Clock func() time.Time

type RoundOption func(*RoundController)

func WithClock(clock Clock) RoundOption {
	return func(rc *RoundController) {
		rc.now = clock
	}
}

// RoundController owns every round in memory. All transitions are
// serialised through a single mutex so a submission racing with a close
// either lands before the close or observes ErrRoundClosed.
type RoundController struct {
	mu     sync.Mutex
	now    Clock
	nextID uint64
	rounds map[uint64]*Round
}

func NewRoundController(opts ...RoundOption) *RoundController {
	rc := &RoundController{
		now:    func() time.Time { return time.Now().UTC() },
		nextID: 1,
		rounds: make(map[uint64]*Round),
	}
	for _, opt := range opts {
		opt(rc)
	}

	return rc
}

func (rc *RoundController) Open(minParticipants int, timeout time.Duration, dim int, modelVersion uint64) (Round, error) {
	switch {
	case minParticipants < 0:
		return Round{}, fmt.Errorf("%w: min participants %d", ErrInvalidRound, minParticipants)
	case timeout <= 0:
		return Round{}, fmt.Errorf("%w: timeout %s", ErrInvalidRound, timeout)
	case dim <= 0:
		return Round{}, fmt.Errorf("%w: dimension %d", ErrInvalidRound, dim)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, r := range rc.rounds {
		if r.State == RoundOpen {
			return Round{}, fmt.Errorf("%w: round %d", ErrRoundInProgress, r.ID)
		}
	}

	now := rc.now()
	r := &Round{
		ID:              rc.nextID,
		State:           RoundOpen,
		OpenedAt:        now,
		Deadline:        now.Add(timeout),
		MinParticipants: minParticipants,
		Dimension:       dim,
		ModelVersion:    modelVersion,
		Accepted:        make(map[string]Envelope),
	}
	rc.rounds[r.ID] = r
	rc.nextID++

	return r.clone(), nil
}

// Submit admits env into the round, replacing any earlier envelope from the
// same node. It returns the number of distinct accepted nodes.
func (rc *RoundController) Submit(roundID uint64, env Envelope) (int, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	r, err := rc.lookup(roundID)
	if err != nil {
		return 0, err
	}
	if r.State != RoundOpen || !rc.now().Before(r.Deadline) {
		return len(r.Accepted), fmt.Errorf("%w: round %d", ErrRoundClosed, roundID)
	}
	if env.RoundID != roundID {
		return len(r.Accepted), fmt.Errorf("%w: envelope for round %d submitted to round %d", ErrInvalidRound, env.RoundID, roundID)
	}
	if err := env.Validate(r.Dimension); err != nil {
		return len(r.Accepted), err
	}

	r.Accepted[env.NodeID] = env.clone()

	return len(r.Accepted), nil
}

// Close ends the submission window. Before the deadline a round that has
// not reached quorum stays Open and ErrQuorumPending is returned.
func (rc *RoundController) Close(roundID uint64) (Round, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	r, err := rc.lookup(roundID)
	if err != nil {
		return Round{}, err
	}
	if r.State != RoundOpen {
		return r.clone(), fmt.Errorf("%w: round %d is %s", ErrRoundClosed, roundID, r.State)
	}

	now := rc.now()
	quorum := len(r.Accepted) >= r.MinParticipants
	switch {
	case quorum:
		r.State = RoundClosed
		r.ClosedAt = now
	case now.Before(r.Deadline):
		return r.clone(), fmt.Errorf("%w: %d of %d", ErrQuorumPending, len(r.Accepted), r.MinParticipants)
	default:
		accepted := len(r.Accepted)
		rc.abort(r, now)

		return r.clone(), fmt.Errorf("%w: %d of %d", ErrQuorumNotMet, accepted, r.MinParticipants)
	}

	return r.clone(), nil
}

func (rc *RoundController) Abort(roundID uint64) (Round, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	r, err := rc.lookup(roundID)
	if err != nil {
		return Round{}, err
	}
	if r.State != RoundOpen {
		return r.clone(), fmt.Errorf("%w: round %d is %s", ErrRoundClosed, roundID, r.State)
	}
	rc.abort(r, rc.now())

	return r.clone(), nil
}

// Expire applies the timeout rule to every Open round whose deadline has
// passed and returns the rounds that changed state.
func (rc *RoundController) Expire() []Round {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := rc.now()
	var expired []Round
	for _, r := range rc.rounds {
		if r.State != RoundOpen || now.Before(r.Deadline) {
			continue
		}
		if len(r.Accepted) >= r.MinParticipants {
			r.State = RoundClosed
			r.ClosedAt = now
		} else {
			rc.abort(r, now)
		}
		expired = append(expired, r.clone())
	}

	return expired
}

func (rc *RoundController) MarkAggregated(roundID uint64, modelVersion uint64) (Round, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	r, ok := rc.rounds[roundID]
	if !ok {
		return Round{}, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	if r.State != RoundClosed {
		return r.clone(), fmt.Errorf("%w: round %d is %s", ErrRoundNotClosed, roundID, r.State)
	}
	r.State = RoundAggregated
	r.ModelVersion = modelVersion

	return r.clone(), nil
}

func (rc *RoundController) Get(roundID uint64) (Round, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	r, ok := rc.rounds[roundID]
	if !ok {
		return Round{}, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}

	return r.clone(), nil
}

// Current returns the Open round, if any.
func (rc *RoundController) Current() (Round, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, r := range rc.rounds {
		if r.State == RoundOpen {
			return r.clone(), true
		}
	}

	return Round{}, false
}

// Pending returns the Closed rounds still awaiting aggregation, oldest first.
func (rc *RoundController) Pending() []Round {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	var pending []Round
	for _, r := range rc.rounds {
		if r.State == RoundClosed {
			pending = append(pending, r.clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	return pending
}

// Restore installs a persisted round and moves the id counter past it.
func (rc *RoundController) Restore(r Round) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if r.Accepted == nil {
		r.Accepted = make(map[string]Envelope)
	}
	if r.ID >= rc.nextID {
		rc.nextID = r.ID + 1
	}
	if r.State.Terminal() {
		return
	}
	restored := r.clone()
	rc.rounds[r.ID] = &restored
}

// Forget drops a terminal round from memory.
func (rc *RoundController) Forget(roundID uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if r, ok := rc.rounds[roundID]; ok && r.State.Terminal() {
		delete(rc.rounds, roundID)
	}
}

// lookup resolves a round for a transition. Rounds already forgotten are
// reported as closed rather than missing.
func (rc *RoundController) lookup(roundID uint64) (*Round, error) {
	r, ok := rc.rounds[roundID]
	switch {
	case ok:
		return r, nil
	case roundID > 0 && roundID < rc.nextID:
		return nil, fmt.Errorf("%w: round %d already finished", ErrRoundClosed, roundID)
	default:
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
}

func (rc *RoundController) abort(r *Round, now time.Time) {
	r.State = RoundAborted
	r.ClosedAt = now
	r.Accepted = make(map[string]Envelope)
}
