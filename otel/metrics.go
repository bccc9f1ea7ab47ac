package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/petal-labs/cuke/runner"
)

// MetricsHandler translates cuke runner events into OpenTelemetry metrics.
// It records counters and histograms for step executions, failures, and
// scenario durations.
type MetricsHandler struct {
	stepExecutions   metric.Int64Counter
	stepFailures     metric.Int64Counter
	stepSkips        metric.Int64Counter
	stepDuration     metric.Float64Histogram
	scenarioDuration metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording cuke runner metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	stepExec, err := meter.Int64Counter("cuke.step.executions",
		metric.WithDescription("Number of step executions"),
	)
	if err != nil {
		return nil, err
	}

	stepFail, err := meter.Int64Counter("cuke.step.failures",
		metric.WithDescription("Number of step failures"),
	)
	if err != nil {
		return nil, err
	}

	stepSkip, err := meter.Int64Counter("cuke.step.skips",
		metric.WithDescription("Number of steps skipped after an earlier failure"),
	)
	if err != nil {
		return nil, err
	}

	stepDur, err := meter.Float64Histogram("cuke.step.duration",
		metric.WithDescription("Duration of step execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	scenarioDur, err := meter.Float64Histogram("cuke.scenario.duration",
		metric.WithDescription("Duration of scenario run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		stepExecutions:   stepExec,
		stepFailures:     stepFail,
		stepSkips:        stepSkip,
		stepDuration:     stepDur,
		scenarioDuration: scenarioDur,
	}, nil
}

// Handle processes a runner event and records the appropriate metrics.
// It implements runner.EventHandler semantics.
func (h *MetricsHandler) Handle(e runner.Event) {
	switch e.Kind {
	case runner.EventStepFinished:
		h.handleStepFinished(e)
	case runner.EventStepFailed:
		h.handleStepFailed(e)
	case runner.EventStepSkipped:
		h.stepSkips.Add(context.Background(), 1, metric.WithAttributes(h.stepAttrs(e)...))
	case runner.EventScenarioFinished:
		h.handleScenarioFinished(e)
	}
}

func (h *MetricsHandler) handleStepFinished(e runner.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(h.stepAttrs(e)...)
	h.stepExecutions.Add(ctx, 1, attrs)
	if d, ok := eventDurationSeconds(e); ok {
		h.stepDuration.Record(ctx, d, attrs)
	}
}

func (h *MetricsHandler) handleStepFailed(e runner.Event) {
	ctx := context.Background()
	attrs := h.stepAttrs(e)
	if c, found := e.Payload["classification"]; found {
		if s, ok := c.(string); ok {
			attrs = append(attrs, attribute.String("cuke.classification", s))
		}
	}
	opt := metric.WithAttributes(attrs...)
	h.stepExecutions.Add(ctx, 1, opt)
	h.stepFailures.Add(ctx, 1, opt)
	if d, ok := eventDurationSeconds(e); ok {
		h.stepDuration.Record(ctx, d, opt)
	}
}

func (h *MetricsHandler) handleScenarioFinished(e runner.Event) {
	attrs := []attribute.KeyValue{
		attribute.String("cuke.scenario", e.ScenarioName),
		attribute.String("cuke.uri", e.URI),
	}
	if s, found := e.Payload["status"]; found {
		if str, ok := s.(string); ok {
			attrs = append(attrs, attribute.String("cuke.status", str))
		}
	}
	h.scenarioDuration.Record(context.Background(), e.Elapsed.Seconds(),
		metric.WithAttributes(attrs...))
}

func (h *MetricsHandler) stepAttrs(e runner.Event) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cuke.scenario", e.ScenarioName),
		attribute.String("cuke.phase", e.Phase.String()),
	}
}

// eventDurationSeconds extracts the per-step duration payload, recorded
// by the test case run loop.
func eventDurationSeconds(e runner.Event) (float64, bool) {
	v, found := e.Payload["duration"]
	if !found {
		return 0, false
	}
	d, ok := v.(interface{ Seconds() float64 })
	if !ok {
		return 0, false
	}
	return d.Seconds(), true
}
