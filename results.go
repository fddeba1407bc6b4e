package assemble

import (
	"sync"

	"github.com/tidwall/btree"
)

// Results accumulates the outputs of completed actions for the lifetime of
// one run.  It grows monotonically: compensation never rolls an output
// back.  Actions receive the accumulator by declaring a *Results parameter
// (after an optional leading context.Context).
//
// Access is mutex-guarded, so reads from choreography-mode actions are
// safe.  Ordering under choreography is completion order, not declaration
// order; cross-step reads in that mode must not assume a sibling has
// already finished.
type Results struct {
	mu      sync.Mutex
	outputs []any
	byName  *btree.Map[string, any]
}

func newResults() *Results {
	return &Results{
		byName: btree.NewMap[string, any](8),
	}
}

// append records a completed action's output under its operation name.
func (r *Results) append(name string, output any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outputs = append(r.outputs, output)
	r.byName.Set(name, output)
}

// All returns a copy of the accumulated outputs in completion order.
func (r *Results) All() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]any, len(r.outputs))
	copy(out, r.outputs)
	return out
}

// Len returns the number of accumulated outputs.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.outputs)
}

// Lookup retrieves the output of a previously completed operation by name.
// Returns the output and true if found, or nil and false if not.
func (r *Results) Lookup(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byName.Get(name)
}

// LookupAs retrieves the output of a previously completed operation by name
// with a type assertion.  Returns the typed output and true if found and
// the type matches, or the zero value and false otherwise.
func LookupAs[T any](r *Results, name string) (T, bool) {
	var zero T
	value, found := r.Lookup(name)
	if !found {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
