package models

import (
	"bytes"
	"encoding/json"
)

// OrderedMap is a mapping value that keeps the key order it was written in.
type OrderedMap struct {
	Keys   []string
	Values map[string]interface{}
}

// Set adds or replaces a key, keeping its first position.
func (m *OrderedMap) Set(key string, value interface{}) {
	if m.Values == nil {
		m.Values = make(map[string]interface{})
	}
	if _, ok := m.Values[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Values[key] = value
}

// Len returns the number of keys.
func (m OrderedMap) Len() int { return len(m.Keys) }

// MarshalJSON writes the keys in insertion order.
func (m OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
