package runner

import (
	"errors"

	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
)

// snippetKeyword is the placeholder backends substitute for the Gherkin
// keyword when generating snippets; the compiled scenario does not
// preserve keywords.
const snippetKeyword = "**KEYWORD**"

// resolveStep classifies a registry lookup into exactly one Match variant.
// Resolution outcomes are never escalated as errors past this boundary;
// the compiler places them into the test case as data and they surface as
// failures only when the step executes.
func (r *Runner) resolveStep(uri string, step core.Step) glue.Match {
	found, err := r.glue.Resolve(uri, step)
	if err != nil {
		var amb *glue.AmbiguousError
		if errors.As(err, &amb) {
			return &glue.Ambiguous{Candidates: amb.Candidates}
		}
		return &glue.FailedInstantiation{Cause: err}
	}
	if found != nil {
		return found
	}

	var snippets []string
	for _, b := range r.backends {
		if s := b.Snippet(step, snippetKeyword, r.opts.Naming); s != "" {
			snippets = append(snippets, s)
		}
	}
	return &glue.Undefined{Snippets: snippets}
}
