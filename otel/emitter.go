package otel

import (
	"github.com/petal-labs/cuke/runner"
)

// EnrichEmitter wraps an EventEmitter with OpenTelemetry trace context.
// When events are emitted, it looks up the active span from the
// TracingHandler and populates the TraceID and SpanID fields on the event.
//
// For step-level events (where StepText or Phase is set), the step span
// is checked first. If no step span is found, it falls back to the
// run-level span. When no span is active, the event passes through
// unchanged.
func EnrichEmitter(emit runner.EventEmitter, tracing *TracingHandler) runner.EventEmitter {
	return func(e runner.Event) {
		// For step-level events, try the step span first.
		if e.StepText != "" || e.Phase != "" {
			sc := tracing.ActiveStepSpanContext(e.RunID)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		// Fallback to run-level span.
		if e.TraceID == "" && e.RunID != "" {
			sc := tracing.ActiveRunSpanContext(e.RunID)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		emit(e)
	}
}
