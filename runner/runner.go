package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/cuke/backend"
	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
)

// Runner errors.
var (
	ErrNilGlue    = errors.New("runner: glue registry is nil")
	ErrWorldBuild = errors.New("runner: world build failed")
)

// Options controls scenario execution behavior.
type Options struct {
	// DryRun compiles scenarios without hook steps and without
	// executing anything side-effecting; used to validate that every
	// step has exactly one handler.
	DryRun bool

	// Naming selects the function-name style for generated snippets.
	Naming core.NamingConvention

	// GluePaths are the configured glue locations handed to backends.
	GluePaths []string

	// Now provides the current time (for testing). If nil, uses time.Now.
	Now func() time.Time

	// EventHandler receives events during execution.
	EventHandler EventHandler

	// EventBus distributes events to subscribers.
	// If nil, events are only sent to EventHandler and the run channel.
	EventBus EventPublisher

	// EventEmitterDecorator wraps the internal event emitter.
	// If nil, events are emitted without decoration.
	EventEmitterDecorator EventEmitterDecorator
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Naming: core.NamingSnakeCase,
	}
}

// Runner compiles scenarios into test cases and executes them. It owns
// the glue registry and the backend set for its lifetime; everything else
// is scoped to one scenario run.
//
// A Runner may be shared by concurrent callers across scenarios: glue
// reads are safe once registration has completed, and per-scenario world
// state is created per Run call and passed explicitly, never stored on
// the Runner.
type Runner struct {
	glue     glue.Glue
	backends []backend.Backend
	opts     Options
	eventCh  chan Event
}

// New creates a runner, loads each backend's definitions into the glue
// registry, and hands each backend the nested step invoker. Registration
// happens here, once, before any scenario executes.
func New(g glue.Glue, backends []backend.Backend, opts Options) (*Runner, error) {
	if g == nil {
		return nil, ErrNilGlue
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Naming == "" {
		opts.Naming = core.NamingSnakeCase
	}

	r := &Runner{
		glue:     g,
		backends: backends,
		opts:     opts,
		eventCh:  make(chan Event, 100), // buffered channel
	}

	for _, b := range backends {
		if err := b.LoadGlue(g, opts.GluePaths); err != nil {
			return nil, fmt.Errorf("runner: loading glue: %w", err)
		}
		b.SetNestedStepRunner(r)
	}

	return r, nil
}

// Glue returns the registry, for collaborators that need direct access.
func (r *Runner) Glue() glue.Glue {
	return r.glue
}

// Events returns the runner's event channel. Events are dropped when the
// channel is full; attach an EventHandler or EventBus for lossless
// delivery.
func (r *Runner) Events() <-chan Event {
	return r.eventCh
}

// ReportDefinitions passes every registered step handler to rep.
func (r *Runner) ReportDefinitions(rep glue.DefinitionReporter) {
	r.glue.ReportDefinitions(rep)
}

// Compile assembles a scenario into a test case: before hooks (unless
// dry-run), the scenario's steps resolved in original order, then after
// hooks (unless dry-run). Compiling never fails outright; unresolved,
// ambiguous, and unbindable steps are carried as their Match variant and
// surface only when executed.
func (r *Runner) Compile(sc core.Scenario) *TestCase {
	var steps []ExecutableStep

	if !r.opts.DryRun {
		steps = append(steps, r.hookSteps(core.HookBefore, sc.Tags)...)
	}
	for _, st := range sc.Steps {
		steps = append(steps, ExecutableStep{
			Step:  st,
			Match: r.resolveStep(sc.URI, st),
		})
	}
	if !r.opts.DryRun {
		steps = append(steps, r.hookSteps(core.HookAfter, sc.Tags)...)
	}

	return &TestCase{scenario: sc, steps: steps, dryRun: r.opts.DryRun}
}

// hookSteps selects the hooks of one phase whose predicate matches the
// scenario tags, preserving registration order (stable filter, no
// re-sorting), and wraps each as a non-skippable hook step.
func (r *Runner) hookSteps(phase core.HookPhase, tags []core.Tag) []ExecutableStep {
	var hooks []glue.HookDefinition
	if phase == core.HookBefore {
		hooks = r.glue.BeforeHooks()
	} else {
		hooks = r.glue.AfterHooks()
	}

	var out []ExecutableStep
	for _, h := range hooks {
		if h.Matches(tags) {
			out = append(out, ExecutableStep{Hook: true, Phase: phase, HookDef: h})
		}
	}
	return out
}

// Run compiles and executes one scenario end-to-end: build every
// backend's world (unconditionally, dry-run included, since handler
// binding may be needed to produce meaningful snippets), compile, run
// with event reporting, then dispose every backend's world
// unconditionally, including after failures.
func (r *Runner) Run(ctx context.Context, sc core.Scenario, language string) error {
	w := core.NewWorld()
	w.Run = core.RunInfo{
		RunID:   uuid.NewString(),
		Started: r.opts.Now(),
	}

	emit := r.newEmitter()

	if err := r.buildWorlds(w); err != nil {
		// Dispose whatever was built; a partial build must not leak
		// into the next scenario.
		return errors.Join(fmt.Errorf("%w: %v", ErrWorldBuild, err), r.disposeWorlds())
	}

	tc := r.Compile(sc)

	start := r.opts.Now()
	emit(NewEvent(EventScenarioStarted, w.Run.RunID).
		WithScenario(sc).
		WithPayload("language", language).
		WithPayload("steps", len(tc.Steps())).
		WithPayload("dry_run", r.opts.DryRun))

	runErr := tc.Run(ctx, w, emit, r.opts.Now)

	finished := NewEvent(EventScenarioFinished, w.Run.RunID).
		WithScenario(sc).
		WithElapsed(r.opts.Now().Sub(start))
	if runErr != nil {
		finished = finished.WithPayload("status", "failed").WithPayload("error", runErr.Error())
	} else {
		finished = finished.WithPayload("status", "passed")
	}
	emit(finished)

	return errors.Join(runErr, r.disposeWorlds())
}

// RunNestedStep synthesizes a step from handler-supplied parts and
// executes it through the same resolution rules as ordinary compilation,
// so nested and top-level steps are indistinguishable to the resolver.
// Non-empty rows take precedence over doc; the step never carries both.
//
// A Found resolution runs immediately and its result propagates
// unchanged. Any other resolution raises an UndefinedStepError whose
// provenance chain starts with a synthetic frame pinpointing the
// scenario file and line that triggered the call.
func (r *Runner) RunNestedStep(ctx context.Context, w *core.World, uri, language, text string, line int, rows []core.DataTableRow, doc *core.DocString) error {
	step := core.Step{
		Text:     text,
		Location: core.Location{Path: uri, Line: line},
	}
	if len(rows) > 0 {
		step.Argument = core.NewTableArgument(rows)
	} else if doc != nil {
		step.Argument = core.NewDocStringArgument(doc.MediaType, doc.Content)
	}

	switch m := r.resolveStep(uri, step).(type) {
	case *glue.Found:
		return m.Handler.Execute(ctx, w, m.Args, step.Argument)
	case *glue.Undefined:
		return &UndefinedStepError{
			Step:       step,
			Snippets:   m.Snippets,
			Provenance: []Frame{{Location: core.Location{Path: uri, Line: line}, Label: "StepDefinition"}},
		}
	case *glue.Ambiguous:
		return &UndefinedStepError{
			Step:       step,
			Provenance: []Frame{{Location: core.Location{Path: uri, Line: line}, Label: "StepDefinition"}},
			Cause:      &AmbiguousStepError{Step: step, Candidates: m.Candidates},
		}
	case *glue.FailedInstantiation:
		return &UndefinedStepError{
			Step:       step,
			Provenance: []Frame{{Location: core.Location{Path: uri, Line: line}, Label: "StepDefinition"}},
			Cause:      m.Cause,
		}
	default:
		return &UndefinedStepError{Step: step}
	}
}

// buildWorlds triggers every backend's per-scenario world setup.
func (r *Runner) buildWorlds(w *core.World) error {
	for _, b := range r.backends {
		if err := b.BuildWorld(w); err != nil {
			return err
		}
	}
	return nil
}

// disposeWorlds tears every backend's world down. One backend's teardown
// failure does not prevent the others' teardown from being attempted;
// failures are joined and surfaced as a scenario-level error.
func (r *Runner) disposeWorlds() error {
	var errs []error
	for _, b := range r.backends {
		if err := b.DisposeWorld(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newEmitter builds the per-run event emitter: sequence stamping, bus
// publication, handler delivery, and best-effort channel delivery.
func (r *Runner) newEmitter() EventEmitter {
	seq := newSeqGen()
	emit := EventEmitter(func(e Event) {
		e.Seq = seq.Next()
		if r.opts.EventBus != nil {
			r.opts.EventBus.Publish(e)
		}
		if r.opts.EventHandler != nil {
			r.opts.EventHandler(e)
		}
		select {
		case r.eventCh <- e:
		default:
			// Drop if channel is full
		}
	})
	if r.opts.EventEmitterDecorator != nil {
		emit = r.opts.EventEmitterDecorator(emit)
	}
	return emit
}

// Ensure interface compliance at compile time.
var _ backend.NestedStepRunner = (*Runner)(nil)
