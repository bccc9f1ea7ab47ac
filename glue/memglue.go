package glue

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/petal-labs/cuke/core"
)

// MemGlue is the in-memory registry implementation. Step patterns are
// regular expressions, implicitly anchored to the full step text.
//
// The mutex guards the registration phase only; Resolve and the hook
// accessors take read locks, so resolution is safe for concurrent
// callers once registration has completed.
type MemGlue struct {
	mu     sync.RWMutex
	steps  []*stepEntry
	before []HookDefinition
	after  []HookDefinition
}

type stepEntry struct {
	re      *regexp.Regexp
	handler StepHandler
}

// NewMemGlue creates an empty registry.
func NewMemGlue() *MemGlue {
	return &MemGlue{}
}

// AddStep registers a step handler, compiling its pattern.
func (g *MemGlue) AddStep(h StepHandler) error {
	re, err := compileStepPattern(h.Pattern())
	if err != nil {
		return fmt.Errorf("glue: step pattern %q: %w", h.Pattern(), err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, &stepEntry{re: re, handler: h})
	return nil
}

// AddHook registers a lifecycle hook in registration order.
func (g *MemGlue) AddHook(h HookDefinition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch h.Phase() {
	case core.HookAfter:
		g.after = append(g.after, h)
	default:
		g.before = append(g.before, h)
	}
}

// Resolve finds the handler matching the step's text.
// It returns (nil, nil) when no handler matches and an *AmbiguousError
// when more than one does.
func (g *MemGlue) Resolve(uri string, step core.Step) (*Found, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var found *Found
	var candidates []StepHandler

	for _, entry := range g.steps {
		m := entry.re.FindStringSubmatch(step.Text)
		if m == nil {
			continue
		}
		candidates = append(candidates, entry.handler)
		found = &Found{Handler: entry.handler, Args: m[1:]}
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return found, nil
	default:
		return nil, &AmbiguousError{Step: step, Candidates: candidates}
	}
}

// BeforeHooks returns the before-scenario hooks in registration order.
func (g *MemGlue) BeforeHooks() []HookDefinition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]HookDefinition, len(g.before))
	copy(out, g.before)
	return out
}

// AfterHooks returns the after-scenario hooks in registration order.
func (g *MemGlue) AfterHooks() []HookDefinition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]HookDefinition, len(g.after))
	copy(out, g.after)
	return out
}

// ReportDefinitions passes every registered step handler to r, in
// registration order.
func (g *MemGlue) ReportDefinitions(r DefinitionReporter) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, entry := range g.steps {
		r.StepDefinition(entry.handler)
	}
}

// compileStepPattern anchors the pattern to the full step text so that
// "I have (\d+) cukes" does not also match a longer step containing it.
func compileStepPattern(pattern string) (*regexp.Regexp, error) {
	p := pattern
	if !strings.HasPrefix(p, "^") {
		p = "^" + p
	}
	if !strings.HasSuffix(p, "$") {
		p += "$"
	}
	return regexp.Compile(p)
}

// Compile-time interface check.
var _ Glue = (*MemGlue)(nil)
