package hub

import (
	"bytes"
	"encoding/json"
)

// Attributes is an entity attribute bag with a locked baseline. A
// key can be explicitly set, inherited (present in the value view but
// not owned), or unset; unsetting is distinct from setting a zero
// value and produces an explicit nil in Changes.
type Attributes struct {
	current  map[string]any
	own      map[string]bool
	baseline map[string]any
	baseOwn  map[string]bool
}

// NewAttributes builds a bag from the server's value view and the
// list of keys the entity owns itself. The baseline starts locked at
// the given state.
func NewAttributes(values map[string]any, ownKeys []string) *Attributes {
	a := &Attributes{
		current: make(map[string]any, len(values)),
		own:     make(map[string]bool, len(ownKeys)),
	}
	for k, v := range values {
		a.current[k] = v
	}
	for _, k := range ownKeys {
		a.own[k] = true
	}
	a.Lock()
	return a
}

// Get returns the effective value of key, owned or inherited.
func (a *Attributes) Get(key string) (any, bool) {
	v, ok := a.current[key]
	return v, ok
}

// IsOwn reports whether key is explicitly set on the entity.
func (a *Attributes) IsOwn(key string) bool {
	return a.own[key]
}

// Set writes an owned value.
func (a *Attributes) Set(key string, value any) {
	a.current[key] = value
	a.own[key] = true
}

// Unset removes the owned value so the entity falls back to
// inheritance.
func (a *Attributes) Unset(key string) {
	delete(a.current, key)
	delete(a.own, key)
}

// Lock snapshots the current state as the new baseline.
func (a *Attributes) Lock() {
	a.baseline = make(map[string]any, len(a.current))
	for k, v := range a.current {
		a.baseline[k] = v
	}
	a.baseOwn = make(map[string]bool, len(a.own))
	for k := range a.own {
		a.baseOwn[k] = true
	}
}

// Changes returns owned keys whose value differs from the baseline.
// A key unset since the lock appears with a nil value.
func (a *Attributes) Changes() map[string]any {
	out := map[string]any{}
	for k := range a.own {
		cur := a.current[k]
		base, hadBase := a.baseline[k]
		if !hadBase || !a.baseOwn[k] || !equalValues(cur, base) {
			out[k] = cur
		}
	}
	for k := range a.baseOwn {
		if !a.own[k] {
			out[k] = nil
		}
	}
	return out
}

// equalValues compares two attribute values through their JSON
// encoding, which normalizes the int/float64 ambiguity of decoded
// server payloads.
func equalValues(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
