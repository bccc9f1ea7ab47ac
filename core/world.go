package core

import "time"

// RunInfo identifies one scenario run for event correlation and replay.
type RunInfo struct {
	RunID   string
	Started time.Time
}

// World is the per-scenario execution context shared by step handlers and
// hooks. It is created fresh for every scenario run and passed explicitly
// through handler calls, including re-entrant nested step invocations, so
// there is no implicit global state between scenarios.
//
// A World is owned by a single scenario run and is not safe for concurrent
// use; execution within one scenario is sequential by construction.
type World struct {
	// Vars is shared state across the scenario (named outputs,
	// intermediate fixtures). Handlers write here for later steps.
	Vars map[string]any

	// Run identifies the scenario run this world belongs to.
	Run RunInfo
}

// NewWorld creates a new empty world with initialized maps.
func NewWorld() *World {
	return &World{
		Vars: make(map[string]any),
	}
}

// SetVar stores a variable by name.
func (w *World) SetVar(name string, value any) {
	if w.Vars == nil {
		w.Vars = make(map[string]any)
	}
	w.Vars[name] = value
}

// GetVar retrieves a variable by name.
// Returns the value and true if found, or nil and false if not.
func (w *World) GetVar(name string) (any, bool) {
	if w.Vars == nil {
		return nil, false
	}
	v, ok := w.Vars[name]
	return v, ok
}

// GetVarString retrieves a variable as a string.
// Returns empty string if not found or not a string.
func (w *World) GetVarString(name string) string {
	v, ok := w.GetVar(name)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// DeleteVar removes a variable by name.
func (w *World) DeleteVar(name string) {
	delete(w.Vars, name)
}

// Clone creates a copy of the world. The Vars map is copied shallowly;
// values still reference shared memory.
func (w *World) Clone() *World {
	if w == nil {
		return nil
	}
	out := &World{Run: w.Run}
	if w.Vars != nil {
		out.Vars = make(map[string]any, len(w.Vars))
		for k, v := range w.Vars {
			out.Vars[k] = v
		}
	}
	return out
}
