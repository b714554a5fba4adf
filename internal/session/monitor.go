package session

import "sync"

// InputKind distinguishes the raw input signals the proctoring cares about.
type InputKind string

const (
	InputPointer InputKind = "pointer"
	InputKey     InputKind = "key"
)

// InputEvent is one raw pointer-movement or key-press signal reported by
// the input surface.
type InputEvent struct {
	Kind InputKind
}

// InputSource is a cancellable subscription to raw input events.
type InputSource interface {
	Subscribe() (<-chan InputEvent, func())
}

// cheatMonitor listens to the input surface only while movement is
// forbidden and the session is active. It holds at most one subscription
// at a time, so repeated safe/unsafe cycles never accumulate listeners.
// Deduplication of the trip itself lives in the session, which checks its
// disqualified flag before acting.
type cheatMonitor struct {
	source InputSource
	trip   func()

	mu     sync.Mutex
	cancel func()
}

func newCheatMonitor(source InputSource, trip func()) *cheatMonitor {
	return &cheatMonitor{source: source, trip: trip}
}

func (m *cheatMonitor) arm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil || m.source == nil {
		return
	}
	events, cancel := m.source.Subscribe()
	m.cancel = cancel
	go func() {
		for range events {
			m.trip()
		}
	}()
}

func (m *cheatMonitor) disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
}

func (m *cheatMonitor) armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}
