package auth

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aryanfhm/tgsnap/internal/bus"
)

// State represents one account's position in the login flow.
type State string

const (
	Unauthenticated  State = "UNAUTHENTICATED"
	CodeRequested    State = "CODE_REQUESTED"
	AwaitingPassword State = "AWAITING_PASSWORD"
	Authenticated    State = "AUTHENTICATED"
	Failed           State = "FAILED"
)

// validTransitions defines allowed state transitions. Rejected codes and
// passwords do not transition at all (fails-soft, the caller retries the
// same step); CodeRequested may re-enter itself when a fresh code is
// requested. Authenticated and Failed are terminal.
var validTransitions = map[State][]State{
	Unauthenticated:  {CodeRequested, Authenticated, Failed},
	CodeRequested:    {CodeRequested, AwaitingPassword, Authenticated, Failed},
	AwaitingPassword: {Authenticated, Failed},
	Authenticated:    {},
	Failed:           {},
}

// Machine tracks one account's authentication state. Because login steps
// arrive as separate, disconnected external calls, the state lives here
// rather than in any suspended call stack.
type Machine struct {
	mu        sync.RWMutex
	accountID string
	current   State
	reason    string
	bus       *bus.Bus
}

// NewMachine creates a machine for the account starting in Unauthenticated.
func NewMachine(accountID string, b *bus.Bus) *Machine {
	return &Machine{
		accountID: accountID,
		current:   Unauthenticated,
		bus:       b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// FailureReason returns the recorded reason when the machine is Failed.
func (m *Machine) FailureReason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed from the current state.
func (m *Machine) Transition(to State) error {
	return m.transition(to, "")
}

// Fail moves to Failed recording the reason. Allowed from every
// non-terminal state.
func (m *Machine) Fail(reason string) error {
	return m.transition(Failed, reason)
}

func (m *Machine) transition(to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.reason = reason
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindAuthStateChanged,
			Timestamp: time.Now(),
			Payload: StateChange{
				AccountID: m.accountID,
				From:      from,
				To:        to,
				Reason:    reason,
			},
		})
	}
	return nil
}

// StateChange is the payload for auth state change events.
type StateChange struct {
	AccountID string
	From      State
	To        State
	Reason    string
}
