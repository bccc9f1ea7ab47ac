package glue

// Match is the resolution outcome for one step: exactly one of Found,
// Ambiguous, Undefined, or FailedInstantiation. The set is closed; the
// unexported marker method keeps implementations inside this package so
// consumers can type-switch exhaustively.
//
// Resolution never silently drops an error: every resolution attempt
// yields one of the four variants as a normal value, and the non-Found
// variants surface as failures only when their step executes.
type Match interface {
	isMatch()
}

// Found is a resolution with exactly one registry candidate.
type Found struct {
	Handler StepHandler

	// Args are the values captured from the handler's pattern.
	Args []string
}

// Ambiguous is a resolution where multiple handlers matched equally well.
// It carries all conflicting candidates for diagnostic reporting.
type Ambiguous struct {
	Candidates []StepHandler
}

// Undefined is a resolution with no matching handler. Snippets holds
// suggested definition stubs collected from the registered backends.
type Undefined struct {
	Snippets []string
}

// FailedInstantiation is a resolution where a handler matched but could
// not be constructed or bound.
type FailedInstantiation struct {
	Cause error
}

func (*Found) isMatch()               {}
func (*Ambiguous) isMatch()           {}
func (*Undefined) isMatch()           {}
func (*FailedInstantiation) isMatch() {}
