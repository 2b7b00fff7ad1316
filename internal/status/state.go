// Package status tracks the sync engine's lifecycle state.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/fitmsg/internal/bus"
)

// State is a sync engine state.
type State string

const (
	Idle         State = "IDLE"
	Syncing      State = "SYNCING"
	Ready        State = "READY"
	Degraded     State = "DEGRADED"
	AuthRequired State = "AUTH_REQUIRED"
	Stopped      State = "STOPPED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:         {Syncing, Stopped},
	Syncing:      {Ready, Degraded, AuthRequired, Stopped},
	Ready:        {Degraded, AuthRequired, Stopped},
	Degraded:     {Ready, AuthRequired, Stopped},
	AuthRequired: {Ready, Degraded, Stopped},
	Stopped:      {Idle},
}

// Info is a point-in-time view of the machine.
type Info struct {
	State     State
	Since     time.Time
	LastError string
}

// Machine tracks and enforces sync state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	lastErr string
	bus     *bus.Bus
}

// NewMachine creates a machine in the Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Info returns the current state with its timestamp and last recorded error.
func (m *Machine) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{State: m.current, Since: m.since, LastError: m.lastErr}
}

// Transition moves to a new state. Returns error if the transition is invalid.
func (m *Machine) Transition(to State) error {
	return m.transition(to, "")
}

// Fail moves to a failure state and records cause.
func (m *Machine) Fail(to State, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return m.transition(to, msg)
}

// Settle moves to to unless already there. Used by poll ticks that report the
// same outcome repeatedly.
func (m *Machine) Settle(to State, cause error) error {
	m.mu.RLock()
	same := m.current == to
	m.mu.RUnlock()
	if same {
		if cause != nil {
			m.mu.Lock()
			m.lastErr = cause.Error()
			m.mu.Unlock()
		}
		return nil
	}
	return m.Fail(to, cause)
}

func (m *Machine) transition(to State, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	m.lastErr = cause
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindSyncStatusChanged,
			Timestamp: m.since,
			Payload: StatusChange{
				From:  from,
				To:    to,
				Cause: cause,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From  State
	To    State
	Cause string
}
