package supervisor

import (
	"fmt"
	"strings"
)

// ArgMap is an ordered argument map: unique keys, iteration in first
// insertion order. Flattened to "--key=value" tokens for the supervisor.
type ArgMap struct {
	keys   []string
	values map[string]string
}

// NewArgMap creates an empty argument map.
func NewArgMap() *ArgMap {
	return &ArgMap{values: make(map[string]string)}
}

// Set inserts or overwrites a key. Overwriting keeps the key's original
// position.
func (m *ArgMap) Set(key, value string) *ArgMap {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value for key and whether it is present.
func (m *ArgMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *ArgMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *ArgMap) Len() int {
	return len(m.keys)
}

// Flatten renders the map as space-joined "--key=value" tokens in
// insertion order.
func (m *ArgMap) Flatten() string {
	tokens := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		tokens = append(tokens, fmt.Sprintf("--%s=%s", k, m.values[k]))
	}
	return strings.Join(tokens, " ")
}
