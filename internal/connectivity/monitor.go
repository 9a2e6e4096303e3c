// Package connectivity tracks the online/offline state of the client
// and notifies the rest of the core on transitions. It is a pure
// event source: no timers, no retries of its own.
package connectivity

import (
	"sync"

	"github.com/liftsync/liftlog/internal/events"
	"github.com/liftsync/liftlog/internal/logging"
)

// State is the connectivity state.
type State string

const (
	Online  State = "ONLINE"
	Offline State = "OFFLINE"
)

// ProbeFunc actively checks reachability of the remote service.
// Used by Recheck, where a platform signal (a window regaining
// visibility, a resumed process) suggests but does not guarantee
// connectivity.
type ProbeFunc func() bool

// Monitor is the two-state connectivity state machine.
type Monitor struct {
	mu    sync.RWMutex
	state State
	bus   *events.Bus
	probe ProbeFunc
}

// NewMonitor creates a Monitor in the given initial state. probe may
// be nil, in which case Recheck is a no-op.
func NewMonitor(bus *events.Bus, initial State, probe ProbeFunc) *Monitor {
	return &Monitor{
		state: initial,
		bus:   bus,
		probe: probe,
	}
}

// IsOnline reports whether the monitor is in the Online state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == Online
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetOnline applies a platform online/offline signal. A transition to
// Online publishes connectivity-restored; a transition to Offline
// publishes connectivity-lost. Restating the current state publishes
// nothing.
func (m *Monitor) SetOnline(online bool) {
	next := Offline
	if online {
		next = Online
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if prev == next {
		return
	}

	logging.Info("connectivity state changed",
		logging.Fields{"from": prev, "to": next})

	if next == Online {
		m.bus.Publish(events.ConnectivityRestored, nil)
	} else {
		m.bus.Publish(events.ConnectivityLost, nil)
	}
}

// Recheck re-evaluates connectivity through the probe. It is wired to
// visibility-regained style signals and treats the probe result as
// the authoritative answer, transitioning if it differs from the
// current state.
func (m *Monitor) Recheck() {
	if m.probe == nil {
		return
	}
	m.SetOnline(m.probe())
}
