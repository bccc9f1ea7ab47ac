package backend

import (
	"context"
	"runtime"

	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
)

// StepFunc is the body of a Go step definition. args are the values
// captured by the pattern; arg is the step's structured argument, nil
// when the step has none.
type StepFunc func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error

// HookFunc is the body of a Go lifecycle hook.
type HookFunc func(ctx context.Context, w *core.World) error

// WorldFunc seeds or inspects a freshly built world.
type WorldFunc func(w *core.World) error

// FuncBackend is the Go-native backend: step definitions and hooks are
// registered as regexp patterns bound to functions. One FuncBackend is
// typically populated in an init path and handed to the runner.
type FuncBackend struct {
	steps    []*funcStep
	hooks    []*funcHook
	builds   []WorldFunc
	disposes []func() error
	nested   NestedStepRunner
}

// NewFuncBackend creates an empty function backend.
func NewFuncBackend() *FuncBackend {
	return &FuncBackend{}
}

// Step registers a step definition. The pattern is a regular expression
// matched against the full step text; capture groups become the handler's
// args. The definition location is the caller's file and line.
func (b *FuncBackend) Step(pattern string, fn StepFunc) *FuncBackend {
	b.steps = append(b.steps, &funcStep{
		pattern:  pattern,
		fn:       fn,
		location: callerLocation(),
	})
	return b
}

// Before registers a hook that runs before scenarios carrying any of the
// given tags. With no tags, the hook runs before every scenario.
func (b *FuncBackend) Before(fn HookFunc, tags ...string) *FuncBackend {
	b.hooks = append(b.hooks, &funcHook{
		phase:    core.HookBefore,
		tags:     tags,
		fn:       fn,
		location: callerLocation(),
	})
	return b
}

// After registers a hook that runs after scenarios carrying any of the
// given tags. With no tags, the hook runs after every scenario.
func (b *FuncBackend) After(fn HookFunc, tags ...string) *FuncBackend {
	b.hooks = append(b.hooks, &funcHook{
		phase:    core.HookAfter,
		tags:     tags,
		fn:       fn,
		location: callerLocation(),
	})
	return b
}

// OnWorldBuild registers a function run when each scenario's world is
// built, in registration order.
func (b *FuncBackend) OnWorldBuild(fn WorldFunc) *FuncBackend {
	b.builds = append(b.builds, fn)
	return b
}

// OnWorldDispose registers a function run when each scenario's world is
// disposed, in registration order.
func (b *FuncBackend) OnWorldDispose(fn func() error) *FuncBackend {
	b.disposes = append(b.disposes, fn)
	return b
}

// Nested returns the nested step runner handed to this backend, for
// handler code that composes further steps. It is nil until the backend
// is attached to a runner.
func (b *FuncBackend) Nested() NestedStepRunner {
	return b.nested
}

// LoadGlue registers all step definitions and hooks into g.
func (b *FuncBackend) LoadGlue(g glue.Glue, paths []string) error {
	for _, s := range b.steps {
		if err := g.AddStep(s); err != nil {
			return err
		}
	}
	for _, h := range b.hooks {
		g.AddHook(h)
	}
	return nil
}

// SetNestedStepRunner stores the runner callback for handler code.
func (b *FuncBackend) SetNestedStepRunner(r NestedStepRunner) {
	b.nested = r
}

// BuildWorld runs the registered world build functions.
func (b *FuncBackend) BuildWorld(w *core.World) error {
	for _, fn := range b.builds {
		if err := fn(w); err != nil {
			return err
		}
	}
	return nil
}

// DisposeWorld runs the registered world dispose functions.
func (b *FuncBackend) DisposeWorld() error {
	for _, fn := range b.disposes {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// Snippet generates a Go step definition stub for an undefined step.
func (b *FuncBackend) Snippet(step core.Step, keywordPlaceholder string, naming core.NamingConvention) string {
	return generateSnippet(step, keywordPlaceholder, naming)
}

// funcStep adapts a registered pattern+func pair to glue.StepHandler.
type funcStep struct {
	pattern  string
	fn       StepFunc
	location core.Location
}

func (s *funcStep) Pattern() string         { return s.pattern }
func (s *funcStep) Location() core.Location { return s.location }

func (s *funcStep) Execute(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {
	return s.fn(ctx, w, args, arg)
}

// funcHook adapts a registered tag-filtered func to glue.HookDefinition.
type funcHook struct {
	phase    core.HookPhase
	tags     []string
	fn       HookFunc
	location core.Location
}

func (h *funcHook) Phase() core.HookPhase   { return h.phase }
func (h *funcHook) Location() core.Location { return h.location }

// Matches reports whether the hook applies: with no tag restriction it
// matches every scenario, otherwise any registered tag must be present.
func (h *funcHook) Matches(tags []core.Tag) bool {
	if len(h.tags) == 0 {
		return true
	}
	for _, want := range h.tags {
		for _, t := range tags {
			if t.Name == want {
				return true
			}
		}
	}
	return false
}

func (h *funcHook) Execute(ctx context.Context, w *core.World) error {
	return h.fn(ctx, w)
}

// callerLocation captures the file and line of the registration call site,
// two frames up (past the FuncBackend method).
func callerLocation() core.Location {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return core.Location{}
	}
	return core.Location{Path: file, Line: line}
}

// Compile-time interface checks.
var (
	_ Backend             = (*FuncBackend)(nil)
	_ glue.StepHandler    = (*funcStep)(nil)
	_ glue.HookDefinition = (*funcHook)(nil)
)
