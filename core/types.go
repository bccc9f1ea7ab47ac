// Package core provides the foundational types for cuke scenario runs.
//
// This package contains:
//   - Source types: Scenario, Step, StepArgument, Tag, Location
//   - Run types: HookPhase, NamingConvention
//   - Data structures: World (per-scenario state carrier)
package core

// Location is a position in a feature source file.
type Location struct {
	Path   string // feature file path or URI
	Line   int
	Column int
}

// Tag is a scenario tag such as "@smoke". Membership tests are exact
// string matches on the full name, including the leading "@".
type Tag struct {
	Name string
}

// HookPhase identifies when a lifecycle hook runs relative to a scenario.
type HookPhase string

const (
	HookBefore HookPhase = "before"
	HookAfter  HookPhase = "after"
)

// String returns the string representation of the HookPhase.
func (p HookPhase) String() string {
	return string(p)
}

// DataTableRow is one row of a tabular step argument.
type DataTableRow struct {
	Cells []string
}

// DataTable is a tabular step argument.
type DataTable struct {
	Rows []DataTableRow
}

// DocString is a multi-line text block step argument.
type DocString struct {
	MediaType string // optional, e.g. "application/json"
	Content   string
}

// StepArgument is the single structured argument a step may carry.
// Exactly one of Table or Doc is set; the constructors enforce this.
type StepArgument struct {
	Table *DataTable
	Doc   *DocString
}

// NewTableArgument creates a tabular step argument.
func NewTableArgument(rows []DataTableRow) *StepArgument {
	return &StepArgument{Table: &DataTable{Rows: rows}}
}

// NewDocStringArgument creates a text-block step argument.
func NewDocStringArgument(mediaType, content string) *StepArgument {
	return &StepArgument{Doc: &DocString{MediaType: mediaType, Content: content}}
}

// Step is one line of scenario behavior: text plus at most one
// structured argument. Argument is nil when the step has none.
type Step struct {
	Text     string
	Location Location
	Argument *StepArgument
}

// Scenario is one compiled, executable instance of a behavioral test case.
//
// Tags is always populated: the loader boundary substitutes an empty slice
// when the underlying parse cannot supply tags, so consumers never need a
// nil check to behave correctly.
type Scenario struct {
	ID       string
	Name     string
	URI      string // source feature file
	Location Location
	Steps    []Step
	Tags     []Tag
}

// HasTag reports whether the scenario carries the named tag.
func (s Scenario) HasTag(name string) bool {
	for _, t := range s.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// NamingConvention selects the function-name style used for generated
// step definition snippets.
type NamingConvention string

const (
	NamingSnakeCase NamingConvention = "snake_case"
	NamingCamelCase NamingConvention = "camelCase"
)

// String returns the string representation of the NamingConvention.
func (n NamingConvention) String() string {
	return string(n)
}

// ParseNamingConvention converts a string to a NamingConvention.
// Unknown values fall back to snake_case.
func ParseNamingConvention(s string) NamingConvention {
	if NamingConvention(s) == NamingCamelCase {
		return NamingCamelCase
	}
	return NamingSnakeCase
}
