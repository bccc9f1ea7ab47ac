package runner

import (
	"context"
	"time"

	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
)

// ExecutableStep is one entry of a compiled test case: either a hook step
// (Hook true, Phase and HookDef set) or a scenario step (Step and Match
// set). Hook steps are non-skippable: they run even when earlier steps
// have failed, so cleanup always happens.
type ExecutableStep struct {
	Hook    bool
	Phase   core.HookPhase
	HookDef glue.HookDefinition

	Step  core.Step
	Match glue.Match
}

// Skippable reports whether the step may be skipped after an earlier
// failure. Only ordinary scenario steps are skippable.
func (s ExecutableStep) Skippable() bool {
	return !s.Hook
}

type stepStatus string

const (
	statusPassed  stepStatus = "passed"
	statusFailed  stepStatus = "failed"
	statusSkipped stepStatus = "skipped"
)

// TestCase is one compiled scenario: before hooks, resolved steps, and
// after hooks in execution order. It is created fresh per run and owned
// exclusively by the invocation that built it. A dry-run test case carries
// no hook steps and skips defined handler bodies.
type TestCase struct {
	scenario core.Scenario
	steps    []ExecutableStep
	dryRun   bool
}

// Scenario returns the originating scenario.
func (tc *TestCase) Scenario() core.Scenario {
	return tc.scenario
}

// Steps returns the compiled steps in execution order.
func (tc *TestCase) Steps() []ExecutableStep {
	return tc.steps
}

// Run executes the test case sequentially on the calling goroutine.
// The first failure marks remaining scenario steps skipped; hook steps
// still run. It returns the first failure, or nil when all steps passed.
func (tc *TestCase) Run(ctx context.Context, w *core.World, emit EventEmitter, now func() time.Time) error {
	start := now()
	var firstErr error

	for _, st := range tc.steps {
		ev := NewEvent(EventStepStarted, w.Run.RunID).WithScenario(tc.scenario)
		if st.Hook {
			ev = ev.WithPhase(st.Phase)
		} else {
			ev = ev.WithStep(st.Step.Text)
		}

		if st.Skippable() && firstErr != nil {
			skipped := ev
			skipped.Kind = EventStepSkipped
			emit(skipped.WithElapsed(now().Sub(start)).WithPayload("status", string(statusSkipped)))
			continue
		}

		// Dry-run validates resolution only: defined handler bodies are
		// skipped, while undefined, ambiguous, and unbindable steps still
		// fall through and fail below.
		if tc.dryRun {
			if _, defined := st.Match.(*glue.Found); defined {
				skipped := ev
				skipped.Kind = EventStepSkipped
				emit(skipped.WithElapsed(now().Sub(start)).WithPayload("status", string(statusSkipped)))
				continue
			}
		}

		emit(ev.WithElapsed(now().Sub(start)))
		stepStart := now()
		err := runExecutableStep(ctx, w, st)
		elapsed := now().Sub(stepStart)

		if err != nil {
			failed := ev
			failed.Kind = EventStepFailed
			emit(failed.WithElapsed(now().Sub(start)).
				WithPayload("status", string(statusFailed)).
				WithPayload("duration", elapsed).
				WithPayload("error", err.Error()).
				WithPayload("classification", classifyStepError(err)))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		finished := ev
		finished.Kind = EventStepFinished
		emit(finished.WithElapsed(now().Sub(start)).
			WithPayload("status", string(statusPassed)).
			WithPayload("duration", elapsed))
	}

	return firstErr
}

// runExecutableStep executes one step. Resolution-time classifications
// are converted into failures here, at execution, never earlier.
func runExecutableStep(ctx context.Context, w *core.World, st ExecutableStep) error {
	if st.Hook {
		return st.HookDef.Execute(ctx, w)
	}

	switch m := st.Match.(type) {
	case *glue.Found:
		return m.Handler.Execute(ctx, w, m.Args, st.Step.Argument)
	case *glue.Undefined:
		return &UndefinedStepError{
			Step:       st.Step,
			Snippets:   m.Snippets,
			Provenance: []Frame{{Location: st.Step.Location, Label: "Step"}},
		}
	case *glue.Ambiguous:
		return &AmbiguousStepError{Step: st.Step, Candidates: m.Candidates}
	case *glue.FailedInstantiation:
		return &InstantiationError{Step: st.Step, Cause: m.Cause}
	default:
		// The Match set is closed; this is unreachable for values
		// produced by resolveStep.
		return &UndefinedStepError{Step: st.Step}
	}
}

// classifyStepError names the failure taxonomy bucket for event payloads.
func classifyStepError(err error) string {
	switch err.(type) {
	case *UndefinedStepError:
		return "undefined"
	case *AmbiguousStepError:
		return "ambiguous"
	case *InstantiationError:
		return "failed_instantiation"
	default:
		return "handler"
	}
}
