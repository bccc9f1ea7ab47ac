package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	otelapi "go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/petal-labs/cuke/backend"
	"github.com/petal-labs/cuke/core"
)

func TestMatchTagFilter(t *testing.T) {
	smoke := core.Scenario{Tags: []core.Tag{{Name: "@smoke"}}}
	wip := core.Scenario{Tags: []core.Tag{{Name: "@smoke"}, {Name: "@wip"}}}
	untagged := core.Scenario{Tags: []core.Tag{}}

	tests := []struct {
		name   string
		sc     core.Scenario
		filter []string
		want   bool
	}{
		{"include hit", smoke, []string{"@smoke"}, true},
		{"include miss", untagged, []string{"@smoke"}, false},
		{"exclude hit", wip, []string{"~@wip"}, false},
		{"exclude miss", smoke, []string{"~@wip"}, true},
		{"exclude wins over include", wip, []string{"@smoke", "~@wip"}, false},
		{"exclusions only pass untagged", untagged, []string{"~@wip"}, true},
		{"any-of includes", smoke, []string{"@pricing", "@smoke"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchTagFilter(tt.sc, tt.filter); got != tt.want {
				t.Errorf("matchTagFilter(%v, %v) = %v, want %v", tt.sc.Tags, tt.filter, got, tt.want)
			}
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	feature := `Feature: Filtering

  @smoke
  Scenario: In scope
    Given a step

  @wip
  Scenario: Out of scope
    Given a step
`
	if err := os.WriteFile(filepath.Join(dir, "f.feature"), []byte(feature), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &suiteConfig{paths: []string{dir}, tags: []string{"@smoke"}}
	scenarios, err := loadScenarios(cfg)
	if err != nil {
		t.Fatalf("loadScenarios() error: %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "In scope" {
		t.Errorf("scenarios = %v, want only 'In scope'", scenarios)
	}
}

func TestLoadScenarios_NoFeatures(t *testing.T) {
	cfg := &suiteConfig{paths: []string{t.TempDir()}}
	_, err := loadScenarios(cfg)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Code != exitFileNotFound {
		t.Errorf("exit code = %d, want %d", exitErr.Code, exitFileNotFound)
	}
}

func TestNewSuiteRunner_OtelInstrumentation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otelapi.GetTracerProvider()
	otelapi.SetTracerProvider(tp)
	t.Cleanup(func() { otelapi.SetTracerProvider(prev) })

	b := backend.NewFuncBackend()
	b.Step(`a step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return nil
	})

	r, cleanup, err := newSuiteRunner(&suiteConfig{otel: true}, []backend.Backend{b}, nil)
	if err != nil {
		t.Fatalf("newSuiteRunner() error: %v", err)
	}
	defer cleanup()

	sc := core.Scenario{
		ID:    "sc-1",
		Name:  "checkout",
		URI:   "checkout.feature",
		Steps: []core.Step{{Text: "a step", Location: core.Location{Path: "checkout.feature", Line: 3}}},
		Tags:  []core.Tag{},
	}
	if err := r.Run(context.Background(), sc, "en"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	names := map[string]bool{}
	for _, s := range spans {
		names[s.Name] = true
	}
	if !names["scenario:checkout"] || !names["step:a step"] {
		t.Errorf("span names = %v, want scenario:checkout and step:a step", names)
	}

	// Events emitted while a span was active carry its trace context.
	var traced bool
	for {
		select {
		case e := <-r.Events():
			if e.TraceID != "" {
				traced = true
			}
			continue
		default:
		}
		break
	}
	if !traced {
		t.Error("no emitted event carried a trace ID")
	}
}
