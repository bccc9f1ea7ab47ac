// Package glue maps step text and hook predicates to registered handler
// code. It defines the registry contract consumed by the runner and an
// in-memory implementation backed by regular expressions.
//
// Registration and resolution are disjoint phases: all AddStep/AddHook
// calls complete before the first Resolve, and resolution is safe for
// concurrent readers afterwards.
package glue

import (
	"context"
	"fmt"
	"strings"

	"github.com/petal-labs/cuke/core"
)

// StepHandler is registered code bound to a step-text pattern.
type StepHandler interface {
	// Pattern returns the pattern this handler was registered with.
	Pattern() string

	// Location returns where the handler was defined.
	Location() core.Location

	// Execute runs the handler. args are the capture groups from the
	// pattern match, arg is the step's structured argument (nil if none).
	Execute(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error
}

// HookDefinition is lifecycle code bound to run before or after scenarios
// whose tags satisfy its predicate.
type HookDefinition interface {
	// Phase returns when the hook runs relative to the scenario.
	Phase() core.HookPhase

	// Matches reports whether the hook applies to a scenario with the
	// given tags.
	Matches(tags []core.Tag) bool

	// Location returns where the hook was defined.
	Location() core.Location

	// Execute runs the hook body.
	Execute(ctx context.Context, w *core.World) error
}

// DefinitionReporter receives registered step handlers for external
// reporting (documentation, usage analysis, formatters).
type DefinitionReporter interface {
	StepDefinition(h StepHandler)
}

// Glue is the handler registry. The runner owns one Glue for its lifetime:
// backends load their definitions into it at construction, and every step
// and hook resolution goes through it afterwards.
type Glue interface {
	// AddStep registers a step handler. It fails when the handler's
	// pattern does not compile.
	AddStep(h StepHandler) error

	// AddHook registers a lifecycle hook. Hooks are returned by
	// BeforeHooks/AfterHooks in registration order.
	AddHook(h HookDefinition)

	// Resolve finds the handler matching a step's text. It returns
	// (nil, nil) when no handler matches and an *AmbiguousError when
	// more than one does. Any other error means a matching handler
	// could not be bound.
	Resolve(uri string, step core.Step) (*Found, error)

	// BeforeHooks returns the before-scenario hooks in registration order.
	BeforeHooks() []HookDefinition

	// AfterHooks returns the after-scenario hooks in registration order.
	AfterHooks() []HookDefinition

	// ReportDefinitions passes every registered step handler to r.
	ReportDefinitions(r DefinitionReporter)
}

// AmbiguousError is returned by Resolve when more than one handler
// matches a step's text equally well.
type AmbiguousError struct {
	Step       core.Step
	Candidates []StepHandler
}

func (e *AmbiguousError) Error() string {
	patterns := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		patterns[i] = fmt.Sprintf("%q at %s:%d", c.Pattern(), c.Location().Path, c.Location().Line)
	}
	return fmt.Sprintf("ambiguous step %q matches %d handlers: %s",
		e.Step.Text, len(e.Candidates), strings.Join(patterns, ", "))
}
