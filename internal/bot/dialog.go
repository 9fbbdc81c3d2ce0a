package bot

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"zeinbus/internal/booking"
)

// State is the step a booking dialog is waiting on.
type State string

const (
	StateIdle          State = "idle"
	StateAskTripType   State = "ask_trip_type"
	StateAskDate       State = "ask_date"
	StateAskStartPoint State = "ask_start_point"
	StateAskSeats      State = "ask_seats"
	StateAskReturnTime State = "ask_return_time"
	StateAskPayment    State = "ask_payment"
	StateConfirm       State = "confirm"
	StateComplete      State = "complete"
	StateCanceled      State = "canceled"
)

const defaultDialogExpiry = 30 * time.Minute

// Dialog is one chat's in-progress booking.
type Dialog struct {
	State State
	Draft booking.Draft
	// IdempotencyKey stays fixed for the dialog so a repeated confirm tap
	// cannot create a second booking.
	IdempotencyKey string
	StartPoints    []string
	ReturnTimes    []booking.TimeOption
	UpdatedAt      time.Time
}

func newDialog(d booking.Draft, now time.Time) *Dialog {
	return &Dialog{
		State:          StateIdle,
		Draft:          d,
		IdempotencyKey: uuid.NewString(),
		UpdatedAt:      now,
	}
}

// FSM holds the allowed dialog transitions.
type FSM struct {
	transitions map[State][]State
}

func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:          {StateAskTripType},
			StateAskTripType:   {StateAskDate, StateCanceled},
			StateAskDate:       {StateAskStartPoint, StateAskSeats, StateAskTripType, StateCanceled},
			StateAskStartPoint: {StateAskSeats, StateAskDate, StateCanceled},
			StateAskSeats:      {StateAskReturnTime, StateAskPayment, StateAskStartPoint, StateAskDate, StateCanceled},
			StateAskReturnTime: {StateAskPayment, StateAskSeats, StateCanceled},
			StateAskPayment:    {StateConfirm, StateAskReturnTime, StateAskSeats, StateCanceled},
			StateConfirm:       {StateComplete, StateAskPayment, StateAskSeats, StateAskDate, StateCanceled},
			StateComplete:      {StateIdle},
			StateCanceled:      {StateIdle},
		},
	}
}

// CanTransition reports whether from may move to to.
func (f *FSM) CanTransition(from, to State) bool {
	return slices.Contains(f.transitions[from], to)
}

// Transition moves the dialog to to when allowed.
func (f *FSM) Transition(d *Dialog, to State, now time.Time) bool {
	if !f.CanTransition(d.State, to) {
		return false
	}
	d.State = to
	d.UpdatedAt = now
	return true
}

// afterDate is the step that follows the date for t.
func afterDate(t booking.TripType) State {
	if t.NeedsStartPoint() {
		return StateAskStartPoint
	}
	return StateAskSeats
}

// afterSeats is the step that follows the seat count for t.
func afterSeats(t booking.TripType) State {
	if t.NeedsReturnTime() {
		return StateAskReturnTime
	}
	return StateAskPayment
}

// dialogStore keeps dialogs per chat and drops idle ones.
type dialogStore struct {
	mu      sync.Mutex
	m       map[int64]*Dialog
	timeout time.Duration
}

func newDialogStore(timeout time.Duration) *dialogStore {
	if timeout <= 0 {
		timeout = defaultDialogExpiry
	}
	return &dialogStore{m: make(map[int64]*Dialog), timeout: timeout}
}

// get returns the live dialog of chatID, or nil.
func (s *dialogStore) get(chatID int64, now time.Time) *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.m[chatID]
	if d != nil && now.Sub(d.UpdatedAt) > s.timeout {
		delete(s.m, chatID)
		return nil
	}
	return d
}

func (s *dialogStore) put(chatID int64, d *Dialog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[chatID] = d
}

func (s *dialogStore) reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}

// cleanup removes expired dialogs and returns how many were dropped.
func (s *dialogStore) cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for chatID, d := range s.m {
		if now.Sub(d.UpdatedAt) > s.timeout {
			delete(s.m, chatID)
			removed++
		}
	}
	return removed
}
