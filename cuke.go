// Package cuke provides a Go-native runner for Gherkin scenarios:
// features are compiled into test cases with lifecycle hooks and
// executed against step definitions supplied by backends.
//
// This file provides convenience re-exports for the types and
// constructors most suites need. For larger suites, consider importing
// subpackages directly for clearer dependencies:
//
//	import "github.com/petal-labs/cuke/core"
//	import "github.com/petal-labs/cuke/glue"
//	import "github.com/petal-labs/cuke/backend"
//	import "github.com/petal-labs/cuke/runner"
package cuke

import (
	"github.com/petal-labs/cuke/backend"
	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
	"github.com/petal-labs/cuke/loader"
	"github.com/petal-labs/cuke/runner"
)

// Type aliases from core package
type (
	// Scenario is a flattened, executable scenario extracted from a feature.
	Scenario = core.Scenario

	// Step is a single scenario step with its optional block argument.
	Step = core.Step

	// StepArgument is a step's data table or doc string payload.
	StepArgument = core.StepArgument

	// DataTable is the tabular step argument form.
	DataTable = core.DataTable

	// DocString is the free-text step argument form.
	DocString = core.DocString

	// Tag is a scenario tag, '@' prefix included.
	Tag = core.Tag

	// Location is a source position inside a feature or definition file.
	Location = core.Location

	// World is the per-scenario state container shared across steps.
	World = core.World

	// NamingConvention selects the identifier style for generated snippets.
	NamingConvention = core.NamingConvention
)

// Type aliases from glue package
type (
	// Glue is the registry step handlers and hooks are resolved against.
	Glue = glue.Glue

	// StepHandler is a single registered step definition.
	StepHandler = glue.StepHandler

	// HookDefinition is a registered Before or After hook.
	HookDefinition = glue.HookDefinition
)

// Type aliases from backend and runner packages
type (
	// Backend supplies step definitions, hooks, and world lifecycle.
	Backend = backend.Backend

	// FuncBackend is a Backend built from plain Go functions.
	FuncBackend = backend.FuncBackend

	// Runner compiles and executes scenarios against backends.
	Runner = runner.Runner

	// Options configures a Runner.
	Options = runner.Options

	// Event is a runtime lifecycle notification.
	Event = runner.Event
)

// Naming conventions for generated snippets.
const (
	NamingSnakeCase = core.NamingSnakeCase
	NamingCamelCase = core.NamingCamelCase
)

// NewWorld creates an empty scenario world.
func NewWorld() *core.World { return core.NewWorld() }

// NewFuncBackend creates a backend that registers steps and hooks from
// plain Go functions.
func NewFuncBackend() *backend.FuncBackend { return backend.NewFuncBackend() }

// NewMemGlue creates an empty in-memory step registry.
func NewMemGlue() *glue.MemGlue { return glue.NewMemGlue() }

// NewRunner builds a runner over the given backends with default options.
func NewRunner(backends ...backend.Backend) (*runner.Runner, error) {
	return runner.New(glue.NewMemGlue(), backends, runner.DefaultOptions())
}

// LoadFeature parses one feature file into executable scenarios.
func LoadFeature(path string) ([]core.Scenario, error) { return loader.LoadFeature(path) }

// DefaultOptions returns the default runner configuration.
func DefaultOptions() runner.Options { return runner.DefaultOptions() }
