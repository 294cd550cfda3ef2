package wikibase

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PropertyMap maps property IDs to ordered value lists and remembers the
// order in which properties were first added. It serializes as a JSON object
// whose keys appear in that order.
type PropertyMap[T any] struct {
	keys   []string
	values map[string][]T
}

// Add appends values under pid, registering pid on first use
func (m *PropertyMap[T]) Add(pid string, values ...T) {
	if m.values == nil {
		m.values = make(map[string][]T)
	}
	if _, ok := m.values[pid]; !ok {
		m.keys = append(m.keys, pid)
	}
	m.values[pid] = append(m.values[pid], values...)
}

// Set replaces the values under pid, keeping its original position
func (m *PropertyMap[T]) Set(pid string, values []T) {
	if m.values == nil {
		m.values = make(map[string][]T)
	}
	if _, ok := m.values[pid]; !ok {
		m.keys = append(m.keys, pid)
	}
	m.values[pid] = values
}

// Delete removes pid and its values
func (m *PropertyMap[T]) Delete(pid string) {
	if _, ok := m.values[pid]; !ok {
		return
	}
	delete(m.values, pid)
	for i, k := range m.keys {
		if k == pid {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Get returns the values stored under pid
func (m PropertyMap[T]) Get(pid string) []T {
	return m.values[pid]
}

// Has reports whether pid is present
func (m PropertyMap[T]) Has(pid string) bool {
	_, ok := m.values[pid]
	return ok
}

// Keys returns the property IDs in insertion order
func (m PropertyMap[T]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of distinct properties
func (m PropertyMap[T]) Len() int {
	return len(m.keys)
}

// MarshalJSON encodes the map as an object in insertion order
func (m PropertyMap[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pid := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(pid)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		values := m.values[pid]
		if values == nil {
			values = []T{}
		}
		encoded, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", pid, err)
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping document key order.
// An empty JSON array is accepted as an empty map since the Action API
// encodes empty objects that way.
func (m *PropertyMap[T]) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = nil

	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("property map: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		pid, ok := tok.(string)
		if !ok {
			return fmt.Errorf("property map: expected key, got %v", tok)
		}
		var values []T
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("property %s: %w", pid, err)
		}
		m.Set(pid, values)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
