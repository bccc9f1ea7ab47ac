package runner

import (
	"fmt"
	"strings"

	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
)

// Frame is one entry in a failure's provenance chain: a source location
// plus a label naming what resides there.
type Frame struct {
	Location core.Location
	Label    string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Label, f.Location.Path, f.Location.Line)
}

// UndefinedStepError is raised when an executed step has no matching
// handler. Provenance is an ordered chain of frames pointing back at the
// scenario source; for nested invocations the first frame identifies the
// scenario file and line that triggered the call.
type UndefinedStepError struct {
	Step       core.Step
	Snippets   []string
	Provenance []Frame

	// Cause carries the non-Found resolution detail when a nested
	// invocation resolved to something other than Undefined.
	Cause error
}

func (e *UndefinedStepError) Error() string {
	msg := fmt.Sprintf("undefined step: %q", e.Step.Text)
	if len(e.Provenance) > 0 {
		frames := make([]string, len(e.Provenance))
		for i, f := range e.Provenance {
			frames[i] = f.String()
		}
		msg += " at " + strings.Join(frames, " <- ")
	}
	return msg
}

// Unwrap returns the underlying resolution failure, if any.
func (e *UndefinedStepError) Unwrap() error {
	return e.Cause
}

// AmbiguousStepError is raised when an executed step matched more than
// one handler. It carries all conflicting candidates for diagnostics.
type AmbiguousStepError struct {
	Step       core.Step
	Candidates []glue.StepHandler
}

func (e *AmbiguousStepError) Error() string {
	patterns := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		patterns[i] = fmt.Sprintf("%q", c.Pattern())
	}
	return fmt.Sprintf("ambiguous step %q: matches %s", e.Step.Text, strings.Join(patterns, ", "))
}

// InstantiationError is raised when an executed step's handler matched
// but could not be constructed or bound.
type InstantiationError struct {
	Step  core.Step
	Cause error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("step %q: handler could not be bound: %v", e.Step.Text, e.Cause)
}

// Unwrap returns the binding failure.
func (e *InstantiationError) Unwrap() error {
	return e.Cause
}
