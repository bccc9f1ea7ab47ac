package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petal-labs/cuke/backend"
	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
)

func testScenario(steps ...string) core.Scenario {
	sc := core.Scenario{
		ID:   "sc-1",
		Name: "test scenario",
		URI:  "test.feature",
		Tags: []core.Tag{},
	}
	for i, text := range steps {
		sc.Steps = append(sc.Steps, core.Step{
			Text:     text,
			Location: core.Location{Path: "test.feature", Line: 10 + i},
		})
	}
	return sc
}

// collectEvents returns an EventHandler appending into the given slice.
func collectEvents(events *[]Event) EventHandler {
	return func(e Event) {
		*events = append(*events, e)
	}
}

func TestNew_NilGlue(t *testing.T) {
	_, err := New(nil, nil, DefaultOptions())
	if !errors.Is(err, ErrNilGlue) {
		t.Errorf("New(nil glue) error = %v, want ErrNilGlue", err)
	}
}

func TestNew_LoadsGlueAndSetsNestedRunner(t *testing.T) {
	b := backend.NewFuncBackend()
	b.Step(`a defined step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return nil
	})

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	found, err := r.Glue().Resolve("test.feature", core.Step{Text: "a defined step"})
	if err != nil || found == nil {
		t.Errorf("backend definitions not loaded: found=%v err=%v", found, err)
	}
	if b.Nested() == nil {
		t.Error("nested step runner was not handed to the backend")
	}
}

func TestRunner_Run_Passes(t *testing.T) {
	var executed []string
	b := backend.NewFuncBackend()
	b.Step(`step (one|two)`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		executed = append(executed, args[0])
		return nil
	})

	var events []Event
	opts := DefaultOptions()
	opts.EventHandler = collectEvents(&events)

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := r.Run(context.Background(), testScenario("step one", "step two"), "en"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(executed) != 2 || executed[0] != "one" || executed[1] != "two" {
		t.Errorf("executed = %v, want [one two]", executed)
	}

	kinds := eventKinds(events)
	want := []EventKind{
		EventScenarioStarted,
		EventStepStarted, EventStepFinished,
		EventStepStarted, EventStepFinished,
		EventScenarioFinished,
	}
	assertKinds(t, kinds, want)

	// Sequence numbers are monotonic and 1-indexed per run.
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Errorf("event[%d].Seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.RunID == "" {
			t.Errorf("event[%d].RunID is empty", i)
		}
	}
}

func TestRunner_Run_FailureSkipsRemainingSteps(t *testing.T) {
	boom := errors.New("assertion failed")
	var ranLater bool
	b := backend.NewFuncBackend()
	b.Step(`a failing step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return boom
	})
	b.Step(`a later step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		ranLater = true
		return nil
	})

	var events []Event
	opts := DefaultOptions()
	opts.EventHandler = collectEvents(&events)

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	runErr := r.Run(context.Background(), testScenario("a failing step", "a later step"), "en")
	if !errors.Is(runErr, boom) {
		t.Errorf("Run() error = %v, want %v", runErr, boom)
	}
	if ranLater {
		t.Error("step after a failure was executed, want skipped")
	}

	assertKinds(t, eventKinds(events), []EventKind{
		EventScenarioStarted,
		EventStepStarted, EventStepFailed,
		EventStepSkipped,
		EventScenarioFinished,
	})

	final := events[len(events)-1]
	if final.Payload["status"] != "failed" {
		t.Errorf("scenario finished status = %v, want failed", final.Payload["status"])
	}
}

func TestRunner_Run_HooksAlwaysRun(t *testing.T) {
	boom := errors.New("step failed")
	var afterRan bool
	b := backend.NewFuncBackend()
	b.Step(`a failing step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return boom
	})
	b.After(func(ctx context.Context, w *core.World) error {
		afterRan = true
		return nil
	})

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if runErr := r.Run(context.Background(), testScenario("a failing step"), "en"); !errors.Is(runErr, boom) {
		t.Errorf("Run() error = %v, want %v", runErr, boom)
	}
	if !afterRan {
		t.Error("after hook did not run following a step failure")
	}
}

func TestRunner_Run_HookTagFiltering(t *testing.T) {
	var ran []string
	b := backend.NewFuncBackend()
	b.Step(`a step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return nil
	})
	b.Before(func(ctx context.Context, w *core.World) error {
		ran = append(ran, "untagged")
		return nil
	})
	b.Before(func(ctx context.Context, w *core.World) error {
		ran = append(ran, "smoke")
		return nil
	}, "@smoke")
	b.Before(func(ctx context.Context, w *core.World) error {
		ran = append(ran, "wip")
		return nil
	}, "@wip")

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	sc := testScenario("a step")
	sc.Tags = []core.Tag{{Name: "@smoke"}}
	if err := r.Run(context.Background(), sc, "en"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Registration order is preserved; @wip hook is filtered out.
	if len(ran) != 2 || ran[0] != "untagged" || ran[1] != "smoke" {
		t.Errorf("hooks ran = %v, want [untagged smoke]", ran)
	}
}

func TestRunner_DryRun_SuppressesHooks(t *testing.T) {
	b := backend.NewFuncBackend()
	b.Step(`a step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return nil
	})
	b.Before(func(ctx context.Context, w *core.World) error {
		t.Error("before hook ran during dry-run")
		return nil
	})

	opts := DefaultOptions()
	opts.DryRun = true
	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tc := r.Compile(testScenario("a step"))
	for _, st := range tc.Steps() {
		if st.Hook {
			t.Error("dry-run compile produced a hook step")
		}
	}
}

func TestRunner_DryRun_SkipsHandlerBodies(t *testing.T) {
	b := backend.NewFuncBackend()
	b.Step(`a step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		t.Error("handler body executed during dry-run")
		return nil
	})

	var events []Event
	opts := DefaultOptions()
	opts.DryRun = true
	opts.EventHandler = collectEvents(&events)

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if runErr := r.Run(context.Background(), testScenario("a step"), "en"); runErr != nil {
		t.Fatalf("Run() error: %v", runErr)
	}

	assertKinds(t, eventKinds(events), []EventKind{
		EventScenarioStarted,
		EventStepSkipped,
		EventScenarioFinished,
	})
	if status := events[len(events)-1].Payload["status"]; status != "passed" {
		t.Errorf("scenario finished status = %v, want passed", status)
	}
}

func TestRunner_DryRun_StillFailsUndefined(t *testing.T) {
	var events []Event
	opts := DefaultOptions()
	opts.DryRun = true
	opts.EventHandler = collectEvents(&events)

	r, err := New(glue.NewMemGlue(), []backend.Backend{backend.NewFuncBackend()}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	runErr := r.Run(context.Background(), testScenario("a step nobody wrote"), "en")
	var undef *UndefinedStepError
	if !errors.As(runErr, &undef) {
		t.Fatalf("Run() error = %v, want UndefinedStepError", runErr)
	}

	assertKinds(t, eventKinds(events), []EventKind{
		EventScenarioStarted,
		EventStepStarted, EventStepFailed,
		EventScenarioFinished,
	})
}

func TestRunner_Run_EmittedEventsAreImmutable(t *testing.T) {
	b := backend.NewFuncBackend()
	b.Step(`a failing step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return errors.New("assertion failed")
	})

	var events []Event
	opts := DefaultOptions()
	opts.EventHandler = collectEvents(&events)

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if runErr := r.Run(context.Background(), testScenario("a failing step"), "en"); runErr == nil {
		t.Fatal("Run() error = nil, want failure")
	}

	// The later step.failed emission for the same step must not reach back
	// into the already-delivered step.started payload.
	for _, e := range events {
		if e.Kind != EventStepStarted {
			continue
		}
		if _, ok := e.Payload["status"]; ok {
			t.Errorf("step.started payload gained status = %v after emission", e.Payload["status"])
		}
		if _, ok := e.Payload["error"]; ok {
			t.Error("step.started payload gained an error after emission")
		}
	}
}

func TestRunner_Run_WorldLifecycle(t *testing.T) {
	var order []string
	b := backend.NewFuncBackend()
	b.OnWorldBuild(func(w *core.World) error {
		order = append(order, "build")
		return nil
	})
	b.OnWorldDispose(func() error {
		order = append(order, "dispose")
		return nil
	})
	b.Step(`a step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		order = append(order, "step")
		return nil
	})

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := r.Run(context.Background(), testScenario("a step"), "en"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"build", "step", "dispose"}
	if len(order) != len(want) {
		t.Fatalf("lifecycle order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("lifecycle[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRunner_Run_WorldBuildFailure(t *testing.T) {
	boom := errors.New("no database")
	var disposed bool
	b := backend.NewFuncBackend()
	b.OnWorldBuild(func(w *core.World) error { return boom })
	b.OnWorldDispose(func() error {
		disposed = true
		return nil
	})

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	runErr := r.Run(context.Background(), testScenario("a step"), "en")
	if !errors.Is(runErr, ErrWorldBuild) {
		t.Errorf("Run() error = %v, want ErrWorldBuild", runErr)
	}
	if !disposed {
		t.Error("worlds were not disposed after a build failure")
	}
}

func TestRunner_Run_DisposeFailuresJoined(t *testing.T) {
	teardown1 := errors.New("teardown one")
	teardown2 := errors.New("teardown two")
	b1 := backend.NewFuncBackend()
	b1.OnWorldDispose(func() error { return teardown1 })
	b2 := backend.NewFuncBackend()
	var b2Disposed bool
	b2.OnWorldDispose(func() error {
		b2Disposed = true
		return teardown2
	})

	r, err := New(glue.NewMemGlue(), []backend.Backend{b1, b2}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	runErr := r.Run(context.Background(), testScenario(), "en")
	if !b2Disposed {
		t.Error("second backend's teardown skipped after the first failed")
	}
	if !errors.Is(runErr, teardown1) || !errors.Is(runErr, teardown2) {
		t.Errorf("Run() error = %v, want both teardown errors joined", runErr)
	}
}

func TestRunner_Run_UndefinedStep(t *testing.T) {
	b := backend.NewFuncBackend()

	var events []Event
	opts := DefaultOptions()
	opts.EventHandler = collectEvents(&events)

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	runErr := r.Run(context.Background(), testScenario("a step nobody wrote"), "en")
	var undef *UndefinedStepError
	if !errors.As(runErr, &undef) {
		t.Fatalf("Run() error = %v, want *UndefinedStepError", runErr)
	}
	if len(undef.Snippets) == 0 {
		t.Error("undefined step carries no snippets")
	}
	if len(undef.Provenance) != 1 || undef.Provenance[0].Location.Line != 10 {
		t.Errorf("provenance = %v, want a single frame at test.feature:10", undef.Provenance)
	}

	var failed *Event
	for i := range events {
		if events[i].Kind == EventStepFailed {
			failed = &events[i]
		}
	}
	if failed == nil {
		t.Fatal("no step.failed event emitted")
	}
	if failed.Payload["classification"] != "undefined" {
		t.Errorf("classification = %v, want undefined", failed.Payload["classification"])
	}
}

func TestRunner_Run_AmbiguousStep(t *testing.T) {
	b := backend.NewFuncBackend()
	fn := func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error { return nil }
	b.Step(`I have (\d+) cukes`, fn)
	b.Step(`I have (.+) cukes`, fn)

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	runErr := r.Run(context.Background(), testScenario("I have 5 cukes"), "en")
	var ambig *AmbiguousStepError
	if !errors.As(runErr, &ambig) {
		t.Fatalf("Run() error = %v, want *AmbiguousStepError", runErr)
	}
	if len(ambig.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(ambig.Candidates))
	}
}

func TestRunner_Compile_ResolutionIsData(t *testing.T) {
	// Compilation never fails: unresolved steps are carried as Match
	// variants and only fail when executed.
	r, err := New(glue.NewMemGlue(), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tc := r.Compile(testScenario("completely unknown"))
	steps := tc.Steps()
	if len(steps) != 1 {
		t.Fatalf("compiled steps = %d, want 1", len(steps))
	}
	if _, ok := steps[0].Match.(*glue.Undefined); !ok {
		t.Errorf("Match = %T, want *glue.Undefined", steps[0].Match)
	}
}

func TestRunner_EventsChannel(t *testing.T) {
	b := backend.NewFuncBackend()
	b.Step(`a step`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
		return nil
	})

	r, err := New(glue.NewMemGlue(), []backend.Backend{b}, DefaultOptions())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := r.Run(context.Background(), testScenario("a step"), "en"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Four events fit comfortably in the buffered channel.
	var got []Event
	for {
		select {
		case e := <-r.Events():
			got = append(got, e)
			continue
		case <-time.After(10 * time.Millisecond):
		}
		break
	}
	if len(got) != 4 {
		t.Errorf("channel delivered %d events, want 4", len(got))
	}
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func assertKinds(t *testing.T, got, want []EventKind) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
