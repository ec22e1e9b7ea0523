// Package job holds the progress state machine for a single submission.
//
// States: idle -> submitting -> streaming -> {succeeded | failed}.
// Succeeded and failed are terminal: no further events are processed and no
// observer is notified until Reset returns the machine to idle.
//
// The machine is driven by one goroutine (the submission loop). Snapshot may
// be called from any goroutine. Observers are invoked outside the internal
// lock, in transition order.
package job

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/mwi/types"
)

// ErrInvalidTransition is returned for transitions not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// Machine is the canonical job state for one form instance.
type Machine struct {
	mu       sync.Mutex
	state    types.JobState
	observer Observer
}

// NewMachine creates a machine in the idle state. observer may be nil.
func NewMachine(observer Observer) *Machine {
	return &Machine{
		state:    types.JobState{State: types.StateIdle},
		observer: observer,
	}
}

// notification is a deferred observer call captured under the lock.
type notification func(Observer)

// commit runs notifications outside the lock.
func (m *Machine) commit(notes []notification) {
	if m.observer == nil {
		return
	}
	for _, n := range notes {
		n(m.observer)
	}
}

func transition(from, to types.State) notification {
	return func(o Observer) {
		if t, ok := o.(TransitionObserver); ok {
			t.OnTransition(from, to)
		}
	}
}

// Begin moves idle -> submitting.
func (m *Machine) Begin() error {
	m.mu.Lock()
	if m.state.State != types.StateIdle {
		from := m.state.State
		m.mu.Unlock()
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, from)
	}
	m.state = types.JobState{State: types.StateSubmitting}
	m.mu.Unlock()

	m.commit([]notification{transition(types.StateIdle, types.StateSubmitting)})
	return nil
}

// FrameReceived moves submitting -> streaming on the first frame.
// It is a no-op in any other state.
func (m *Machine) FrameReceived() {
	m.mu.Lock()
	if m.state.State != types.StateSubmitting {
		m.mu.Unlock()
		return
	}
	m.state.State = types.StateStreaming
	m.mu.Unlock()

	m.commit([]notification{transition(types.StateSubmitting, types.StateStreaming)})
}

// Apply processes one event while streaming and reports whether the machine
// is now terminal. Events arriving in any other state are ignored.
func (m *Machine) Apply(ev types.Event) bool {
	m.mu.Lock()
	if m.state.State != types.StateStreaming {
		terminal := m.state.State.IsTerminal()
		m.mu.Unlock()
		return terminal
	}

	var notes []notification
	switch ev.Kind {
	case types.EventKindProgress:
		m.state.Percent = ev.Progress
		m.state.Status = ev.Status
		pct, status := ev.Progress, ev.Status
		notes = append(notes, func(o Observer) { o.OnUpdate(pct, status) })

	case types.EventKindCompleted:
		m.state.State = types.StateSucceeded
		m.state.Percent = 100
		if ev.Status != "" {
			m.state.Status = ev.Status
		}
		m.state.DownloadURL = ev.DownloadURL
		ref := ev.DownloadURL
		notes = append(notes,
			transition(types.StateStreaming, types.StateSucceeded),
			func(o Observer) { o.OnSuccess(ref) },
		)

	case types.EventKindError:
		m.state.State = types.StateFailed
		m.state.FailureReason = types.FailureJobError
		m.state.FailureMessage = ev.Message
		msg := ev.Message
		notes = append(notes,
			transition(types.StateStreaming, types.StateFailed),
			func(o Observer) { o.OnFailure(msg) },
		)
	}
	terminal := m.state.State.IsTerminal()
	m.mu.Unlock()

	m.commit(notes)
	return terminal
}

// Fail moves submitting or streaming -> failed. It returns false, and
// notifies nobody, when the machine is not in flight.
func (m *Machine) Fail(reason types.FailureReason, message string) bool {
	m.mu.Lock()
	from := m.state.State
	if !from.InFlight() {
		m.mu.Unlock()
		return false
	}
	m.state.State = types.StateFailed
	m.state.FailureReason = reason
	m.state.FailureMessage = message
	m.mu.Unlock()

	m.commit([]notification{
		transition(from, types.StateFailed),
		func(o Observer) { o.OnFailure(message) },
	})
	return true
}

// Reset returns a terminal machine to idle, clearing the job state.
// Resetting an idle machine is a no-op; resetting in flight is an error.
func (m *Machine) Reset() error {
	m.mu.Lock()
	from := m.state.State
	if from.InFlight() {
		m.mu.Unlock()
		return fmt.Errorf("%w: reset while %s", ErrInvalidTransition, from)
	}
	m.state = types.JobState{State: types.StateIdle}
	m.mu.Unlock()

	if from != types.StateIdle {
		m.commit([]notification{transition(from, types.StateIdle)})
	}
	return nil
}

// Snapshot returns a copy of the current job state.
func (m *Machine) Snapshot() types.JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// State returns the current state.
func (m *Machine) State() types.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.State
}
