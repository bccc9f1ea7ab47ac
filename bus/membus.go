package bus

import (
	"sync"

	"github.com/petal-labs/cuke/runner"
)

// MemBusConfig configures an in-memory event bus.
type MemBusConfig struct {
	// SubscriberBufferSize is the channel buffer size per subscriber (default: 256).
	SubscriberBufferSize int
}

// MemBus is an in-memory event bus. A subscriber attaches to one scenario
// run, to one feature file, or to everything, optionally narrowed to a set
// of event kinds. Delivery never blocks Publish: a subscriber that cannot
// keep up loses events rather than stalling the run.
type MemBus struct {
	mu          sync.RWMutex
	runSubs     map[string][]*memSub // run ID -> subscribers
	featureSubs map[string][]*memSub // feature URI -> subscribers
	globalSubs  []*memSub
	bufSize     int
	closed      bool
}

// NewMemBus creates a new in-memory event bus with the given configuration.
func NewMemBus(config MemBusConfig) *MemBus {
	bufSize := config.SubscriberBufferSize
	if bufSize <= 0 {
		bufSize = 256
	}
	return &MemBus{
		runSubs:     make(map[string][]*memSub),
		featureSubs: make(map[string][]*memSub),
		bufSize:     bufSize,
	}
}

// Publish routes an event: to the subscribers of its run, to the
// subscribers of the feature file it came from, and to global subscribers.
// If the bus is closed, the event is silently dropped.
func (b *MemBus) Publish(event runner.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.runSubs[event.RunID] {
		sub.send(event)
	}
	for _, sub := range b.featureSubs[event.URI] {
		sub.send(event)
	}
	for _, sub := range b.globalSubs {
		sub.send(event)
	}
}

// Subscribe registers a subscriber for one scenario run, optionally
// narrowed to the given event kinds (none means every kind). The returned
// Subscription must be closed when done.
func (b *MemBus) Subscribe(runID string, kinds ...runner.EventKind) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize, kinds)
	b.runSubs[runID] = append(b.runSubs[runID], sub)
	return sub
}

// SubscribeFeature registers a subscriber for every run of scenarios from
// one feature file, keyed by the event URI. Useful for watch sessions that
// track a single feature across repeated runs.
func (b *MemBus) SubscribeFeature(uri string, kinds ...runner.EventKind) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize, kinds)
	b.featureSubs[uri] = append(b.featureSubs[uri], sub)
	return sub
}

// SubscribeAll registers a subscriber that receives events from all runs,
// optionally narrowed to the given event kinds.
func (b *MemBus) SubscribeAll(kinds ...runner.EventKind) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize, kinds)
	b.globalSubs = append(b.globalSubs, sub)
	return sub
}

// Close shuts down the bus and all active subscriptions.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	for _, subs := range b.runSubs {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, subs := range b.featureSubs {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, sub := range b.globalSubs {
		sub.close()
	}

	return nil
}

// memSub is an in-memory subscription with an optional kind filter.
type memSub struct {
	ch     chan runner.Event
	kinds  map[runner.EventKind]struct{} // nil means every kind
	mu     sync.Mutex
	closed bool
}

func newMemSub(bufSize int, kinds []runner.EventKind) *memSub {
	s := &memSub{ch: make(chan runner.Event, bufSize)}
	if len(kinds) > 0 {
		s.kinds = make(map[runner.EventKind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	return s
}

// Events returns a channel of events for this subscription.
func (s *memSub) Events() <-chan runner.Event {
	return s.ch
}

// Close unsubscribes and releases resources.
func (s *memSub) Close() error {
	s.close()
	return nil
}

// close performs the actual channel close, guarded against double-close.
func (s *memSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers an event when it passes the kind filter. If the channel
// is full or the subscription is closed, the event is dropped.
func (s *memSub) send(event runner.Event) {
	if s.kinds != nil {
		if _, ok := s.kinds[event.Kind]; !ok {
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- event:
	default:
		// Drop if channel full.
	}
}

// Compile-time interface checks.
var _ EventBus = (*MemBus)(nil)
var _ Subscription = (*memSub)(nil)
