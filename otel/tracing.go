// Package otel provides OpenTelemetry integration for cuke runner events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/cuke/runner"
)

// TracingHandler translates cuke runner events into OpenTelemetry spans:
// a root span per scenario run and a child span per step. It maintains
// maps of active spans, creating and ending them based on event kind.
// Steps within one run are sequential, so at most one step span is
// active per run at a time.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	runSpans  map[string]trace.Span      // runID -> span
	runCtxs   map[string]context.Context // runID -> context (for child spans)
	stepSpans map[string]trace.Span      // runID -> active step span
}

// NewTracingHandler creates a new TracingHandler that uses the given
// tracer to create spans from runner events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		stepSpans: make(map[string]trace.Span),
	}
}

// Handle processes a runner event and creates or ends spans accordingly.
// It implements runner.EventHandler semantics.
func (h *TracingHandler) Handle(e runner.Event) {
	switch e.Kind {
	case runner.EventScenarioStarted:
		h.handleScenarioStarted(e)
	case runner.EventStepStarted:
		h.handleStepStarted(e)
	case runner.EventStepFinished:
		h.handleStepEnded(e, codes.Ok, "")
	case runner.EventStepFailed:
		h.handleStepFailed(e)
	case runner.EventScenarioFinished:
		h.handleScenarioFinished(e)
	}
}

// handleScenarioStarted creates a root span for the scenario run.
func (h *TracingHandler) handleScenarioStarted(e runner.Event) {
	spanName := "scenario:" + e.RunID
	if e.ScenarioName != "" {
		spanName = "scenario:" + e.ScenarioName
	}

	ctx, span := h.tracer.Start(context.Background(), spanName,
		trace.WithAttributes(
			attribute.String("cuke.run_id", e.RunID),
			attribute.String("cuke.uri", e.URI),
		),
		trace.WithTimestamp(e.Time),
	)

	if e.ScenarioName != "" {
		span.SetAttributes(attribute.String("cuke.scenario", e.ScenarioName))
	}

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.runCtxs[e.RunID] = ctx
	h.mu.Unlock()
}

// handleStepStarted creates a child span under the run span.
func (h *TracingHandler) handleStepStarted(e runner.Event) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[e.RunID]
	h.mu.RUnlock()

	if !ok {
		// No parent run span; start from background context.
		parentCtx = context.Background()
	}

	spanName := "step:" + e.StepText
	if e.Phase != "" {
		spanName = "hook:" + e.Phase.String()
	}

	_, span := h.tracer.Start(parentCtx, spanName,
		trace.WithAttributes(
			attribute.String("cuke.run_id", e.RunID),
			attribute.String("cuke.step_text", e.StepText),
			attribute.String("cuke.phase", e.Phase.String()),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.stepSpans[e.RunID] = span
	h.mu.Unlock()
}

// handleStepEnded ends the active step span with the given status.
func (h *TracingHandler) handleStepEnded(e runner.Event, code codes.Code, msg string) {
	h.mu.Lock()
	span, ok := h.stepSpans[e.RunID]
	if ok {
		delete(h.stepSpans, e.RunID)
	}
	h.mu.Unlock()

	if ok {
		span.SetStatus(code, msg)
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleStepFailed ends the active step span with error status.
func (h *TracingHandler) handleStepFailed(e runner.Event) {
	errMsg := "unknown error"
	if msg, found := e.Payload["error"]; found {
		if s, ok := msg.(string); ok {
			errMsg = s
		}
	}

	h.mu.Lock()
	span, ok := h.stepSpans[e.RunID]
	if ok {
		delete(h.stepSpans, e.RunID)
	}
	h.mu.Unlock()

	if ok {
		if c, found := e.Payload["classification"]; found {
			if s, ok := c.(string); ok {
				span.SetAttributes(attribute.String("cuke.classification", s))
			}
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(spanError(errMsg), trace.WithTimestamp(e.Time))
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleScenarioFinished ends the root run span.
func (h *TracingHandler) handleScenarioFinished(e runner.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
		delete(h.runCtxs, e.RunID)
	}
	h.mu.Unlock()

	if ok {
		status := ""
		if s, found := e.Payload["status"]; found {
			if str, ok := s.(string); ok {
				status = str
			}
		}

		span.SetAttributes(
			attribute.String("cuke.duration", e.Elapsed.String()),
			attribute.String("cuke.status", status),
		)

		if status == "failed" {
			errMsg := "scenario failed"
			if msg, found := e.Payload["error"]; found {
				if s, ok := msg.(string); ok {
					errMsg = s
				}
			}
			span.SetStatus(codes.Error, errMsg)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveStepSpanContext returns the SpanContext for the run's active step
// span. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveStepSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.stepSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveRunSpanContext returns the SpanContext for the active run span
// identified by runID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.runSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
