package session

import "sync"

// Feed fans raw input events out to monitor subscriptions. The transport
// publishes every pointer/key report it receives; whether an event matters
// is decided by whoever is subscribed at that moment.
type Feed struct {
	mu   sync.Mutex
	subs map[chan InputEvent]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan InputEvent]struct{})}
}

// Publish delivers an event to all current subscribers without blocking;
// a subscriber with a full buffer drops the event, which is harmless since
// any single delivered event is enough to trip the monitor.
func (f *Feed) Publish(ev InputEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel closes the channel
// and must be called to deregister.
func (f *Feed) Subscribe() (<-chan InputEvent, func()) {
	ch := make(chan InputEvent, 8)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}
