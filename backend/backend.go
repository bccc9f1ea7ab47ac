// Package backend defines the pluggable provider abstraction that supplies
// step definitions, scenario world lifecycle, and snippet suggestions to
// the runner, plus FuncBackend, the Go-function implementation.
package backend

import (
	"context"

	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
)

// NestedStepRunner executes an additional, dynamically constructed step
// from inside handler code. The call is synchronous and re-entrant on the
// caller's goroutine; the active world is passed through explicitly.
//
// When rows is non-empty the synthesized step carries a tabular argument
// even if doc is also supplied; otherwise doc (when present) becomes a
// text-block argument; with neither, the step has no argument.
type NestedStepRunner interface {
	RunNestedStep(ctx context.Context, w *core.World, uri, language, text string, line int, rows []core.DataTableRow, doc *core.DocString) error
}

// Backend supplies handler discovery, world lifecycle, and snippet
// suggestions for one implementation ecosystem. The runner owns a set of
// backends for its lifetime and invokes each uniformly.
type Backend interface {
	// LoadGlue registers the backend's step handlers and hooks into g.
	// paths are the configured glue locations; backends that discover
	// definitions statically may ignore them.
	LoadGlue(g glue.Glue, paths []string) error

	// SetNestedStepRunner hands the backend a callback for running
	// nested steps from handler code. Called once at runner construction,
	// before any scenario executes.
	SetNestedStepRunner(r NestedStepRunner)

	// BuildWorld prepares the per-scenario execution context. Called
	// unconditionally before each scenario run, dry-run included.
	BuildWorld(w *core.World) error

	// DisposeWorld tears the per-scenario context down. Called
	// unconditionally after each scenario run, including after failures.
	DisposeWorld() error

	// Snippet returns a best-effort definition stub for an undefined
	// step, or "" when the backend has no suggestion. keywordPlaceholder
	// stands in for the step keyword, which pickles do not preserve.
	Snippet(step core.Step, keywordPlaceholder string, naming core.NamingConvention) string
}
