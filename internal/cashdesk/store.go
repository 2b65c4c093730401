package cashdesk

import (
	"sync"
	"time"

	"labcaja/internal/ledger"
	"labcaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Phase tells whether a cached register total came from an authoritative read.
type Phase int

const (
	PhaseOptimistic Phase = iota + 1
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseOptimistic:
		return "optimistic"
	case PhaseConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// RegisterTotal is a cached register total. An optimistic value is a local estimate that the
// next confirmed read always replaces.
type RegisterTotal struct {
	Amount    decimal.Decimal
	Phase     Phase
	UpdatedAt time.Time
}

// State is a snapshot of everything the desk projects from the backend.
type State struct {
	RegisterID uuid.UUID
	Current    *model.CashSession
	Movements  []model.Movement
	// MovementsComplete is true when Movements holds every movement of Current, so the
	// summary can be rebuilt locally.
	MovementsComplete bool
	Summary           *ledger.Summary
	Registers         map[uuid.UUID]RegisterTotal
	Busy              map[Operation]bool
	Version           uint64
}

func (s State) clone() State {
	out := s
	if s.Current != nil {
		cur := *s.Current
		out.Current = &cur
	}
	if s.Movements != nil {
		out.Movements = append([]model.Movement(nil), s.Movements...)
	}
	if s.Summary != nil {
		sum := *s.Summary
		sum.TotalByPaymentMethod = make(map[model.PaymentMethod]decimal.Decimal, len(s.Summary.TotalByPaymentMethod))
		for k, v := range s.Summary.TotalByPaymentMethod {
			sum.TotalByPaymentMethod[k] = v
		}
		out.Summary = &sum
	}
	out.Registers = make(map[uuid.UUID]RegisterTotal, len(s.Registers))
	for k, v := range s.Registers {
		out.Registers[k] = v
	}
	out.Busy = make(map[Operation]bool, len(s.Busy))
	for k, v := range s.Busy {
		out.Busy[k] = v
	}
	return out
}

// Store is the observable state container of a desk. Readers take snapshots or subscribe;
// writes only happen through the desk operations.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int
}

func NewStore(registerID uuid.UUID) *Store {
	return &Store{
		state: State{
			RegisterID: registerID,
			Registers:  make(map[uuid.UUID]RegisterTotal),
			Busy:       make(map[Operation]bool),
		},
		subs: make(map[int]chan State),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel that always holds the latest state. Slow subscribers skip
// intermediate versions; writers never block. The returned func unsubscribes and closes
// the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan State, 1)
	ch <- s.state.clone()
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// update applies fn under the lock. fn returns false to discard the write without
// notifying subscribers.
func (s *Store) update(fn func(st *State) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn(&s.state) {
		return false
	}
	s.state.Version++
	snap := s.state.clone()
	for _, ch := range s.subs {
		publish(ch, snap)
	}
	return true
}

func publish(ch chan State, snap State) {
	select {
	case ch <- snap:
		return
	default:
	}
	// Replace the stale pending value.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
