package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the single authoritative pipeline state. Exactly one value exists
// per session at any instant.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
	StateTranslating
	StateSpeaking
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateTranslating:
		return "translating"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a state change would skip or reorder
// stages.
var ErrInvalidTransition = errors.New("invalid state transition")

// Transition is one observed state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Machine holds the pipeline state and notifies subscribers of every change.
// Transitions are strictly linear plus a reset to idle from any state; no
// other moves are valid. All changes happen under one lock, so observers
// never see a half-applied transition.
//
// Machine is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	current State
	subs    map[int]chan Transition
	nextSub int
}

// NewMachine returns a Machine in [StateIdle].
func NewMachine() *Machine {
	return &Machine{subs: make(map[int]chan Transition)}
}

// Current returns the state at this instant.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers a listener for state changes. Notifications that would
// block are dropped, so size the buffer for the observation window needed.
// The returned cancel function unregisters the listener and closes the
// channel.
func (m *Machine) Subscribe(buffer int) (<-chan Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Transition, buffer)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// to moves the machine to next. Valid moves are the next linear stage or a
// reset to [StateIdle]. A reset while already idle is a silent no-op.
func (m *Machine) to(next State, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if next == StateIdle {
		if m.current == StateIdle {
			return nil
		}
	} else if next != m.current+1 {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, m.current, next)
	}

	tr := Transition{From: m.current, To: next, At: at}
	m.current = next
	for _, sub := range m.subs {
		select {
		case sub <- tr:
		default:
		}
	}
	return nil
}
