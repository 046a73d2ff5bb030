package state

// State is a record of named fields held by a Store.
// Values handed out by a Store are always fresh copies of the top-level map.
type State map[string]any

// Clone returns a shallow copy of the state. A nil state clones to an empty one.
func (s State) Clone() State {
	dst := make(State, len(s))
	for k, v := range s {
		dst[k] = v
	}
	return dst
}

// Merge returns a new state with every field of partial written over s.
// Nested values are not merged recursively.
func (s State) Merge(partial State) State {
	dst := make(State, len(s)+len(partial))
	for k, v := range s {
		dst[k] = v
	}
	for k, v := range partial {
		dst[k] = v
	}
	return dst
}

// Keys returns the field names of the state in no particular order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}
