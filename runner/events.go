// Package runner compiles scenarios into executable test cases and runs
// them against registered handler code, emitting events.
package runner

import (
	"sync/atomic"
	"time"

	"github.com/petal-labs/cuke/core"
)

// EventKind identifies the type of event emitted during a scenario run.
type EventKind string

const (
	// EventScenarioStarted is emitted when a scenario run begins.
	EventScenarioStarted EventKind = "scenario.started"

	// EventStepStarted is emitted when a step begins execution.
	EventStepStarted EventKind = "step.started"

	// EventStepFinished is emitted when a step completes successfully.
	EventStepFinished EventKind = "step.finished"

	// EventStepFailed is emitted when a step fails, including undefined,
	// ambiguous, and instantiation failures surfacing at execution time.
	EventStepFailed EventKind = "step.failed"

	// EventStepSkipped is emitted for scenario steps skipped because an
	// earlier step failed. Hook steps are never skipped.
	EventStepSkipped EventKind = "step.skipped"

	// EventScenarioFinished is emitted when a scenario run completes.
	EventScenarioFinished EventKind = "scenario.finished"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured, streamable record of what happened during a
// scenario run. Events should be kept small; large data belongs in the
// world or an event store payload reference.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// RunID is the unique identifier for this scenario run.
	RunID string

	// ScenarioID and ScenarioName identify the scenario.
	ScenarioID   string
	ScenarioName string

	// URI is the scenario's source feature file.
	URI string

	// StepText is the step's text (empty for scenario-level events).
	StepText string

	// Phase is set for hook steps (empty for ordinary steps).
	Phase core.HookPhase

	// Time is when the event occurred.
	Time time.Time

	// Elapsed is the duration since the scenario run started.
	Elapsed time.Duration

	// Payload contains event-specific data (status, error, snippets).
	Payload map[string]any

	// Seq is a monotonic sequence number per run (1-indexed).
	Seq uint64

	// TraceID is the OpenTelemetry trace ID (hex, empty when inactive).
	TraceID string

	// SpanID is the OpenTelemetry span ID (hex, empty when inactive).
	SpanID string
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, runID string) Event {
	return Event{
		Kind:    kind,
		RunID:   runID,
		Time:    time.Now(),
		Payload: make(map[string]any),
	}
}

// WithScenario sets the scenario identity on the event.
func (e Event) WithScenario(sc core.Scenario) Event {
	e.ScenarioID = sc.ID
	e.ScenarioName = sc.Name
	e.URI = sc.URI
	return e
}

// WithStep sets the step text on the event.
func (e Event) WithStep(text string) Event {
	e.StepText = text
	return e
}

// WithPhase marks the event as belonging to a hook step.
func (e Event) WithPhase(phase core.HookPhase) Event {
	e.Phase = phase
	return e
}

// WithElapsed sets the elapsed duration on the event.
func (e Event) WithElapsed(elapsed time.Duration) Event {
	e.Elapsed = elapsed
	return e
}

// WithPayload returns a copy of the event with the key-value pair added.
// The payload map is copied rather than mutated in place: struct copies of
// an event share the map, and an event already handed to an emitter must
// not change after the fact (subscribers read it concurrently).
func (e Event) WithPayload(key string, value any) Event {
	p := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		p[k] = v
	}
	p[key] = value
	e.Payload = p
	return e
}

// EventEmitter is a function type for emitting events.
type EventEmitter func(Event)

// EventEmitterDecorator wraps an emitter to add cross-cutting behavior,
// such as enriching events with trace metadata.
type EventEmitterDecorator func(EventEmitter) EventEmitter

// EventPublisher can publish events to external subscribers. It is
// satisfied by bus.EventBus, so the runner can distribute events without
// importing the bus package.
type EventPublisher interface {
	Publish(event Event)
}

// EventHandler is a function type for handling events.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelEventHandler returns a handler that sends events to a channel.
// Events are dropped if the channel is full.
func ChannelEventHandler(ch chan<- Event) EventHandler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full
		}
	}
}

// seqGen produces monotonically increasing sequence numbers for one run.
type seqGen struct {
	counter atomic.Uint64
}

func newSeqGen() *seqGen {
	return &seqGen{}
}

// Next returns the next sequence number (1-indexed).
func (s *seqGen) Next() uint64 {
	return s.counter.Add(1)
}
