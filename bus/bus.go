// Package bus provides an event distribution system for cuke scenario
// runs. It allows components to publish and subscribe to runner events,
// enabling decoupled communication between the execution engine and
// observers such as formatters, stores, and monitoring systems.
package bus

import "github.com/petal-labs/cuke/runner"

// EventBus distributes events to subscribers. Subscriptions may be scoped
// to one scenario run, to one feature file, or to everything, and may be
// narrowed to a set of event kinds (none means every kind).
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(event runner.Event)

	// Subscribe registers a subscriber for a specific scenario run.
	// Returns a Subscription that must be closed when done.
	Subscribe(runID string, kinds ...runner.EventKind) Subscription

	// SubscribeFeature registers a subscriber for every run of scenarios
	// from one feature file. Returns a Subscription that must be closed
	// when done.
	SubscribeFeature(uri string, kinds ...runner.EventKind) Subscription

	// SubscribeAll registers a subscriber that receives events from all
	// runs. Returns a Subscription that must be closed when done.
	SubscribeAll(kinds ...runner.EventKind) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan runner.Event

	// Close unsubscribes and releases resources.
	Close() error
}
