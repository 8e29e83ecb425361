package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NormalizedRow maps header labels to cell values and remembers the order in
// which labels were first set. A label set twice keeps its first position and
// its latest value.
type NormalizedRow struct {
	keys   []string
	values map[string]string
}

// Set assigns value to label.
func (r *NormalizedRow) Set(label, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[label]; !ok {
		r.keys = append(r.keys, label)
	}
	r.values[label] = value
}

// Get returns the value stored under label.
func (r NormalizedRow) Get(label string) (string, bool) {
	v, ok := r.values[label]
	return v, ok
}

// Labels returns the labels in insertion order.
func (r NormalizedRow) Labels() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of distinct labels.
func (r NormalizedRow) Len() int { return len(r.keys) }

// Map returns a copy of the row as a plain map.
func (r NormalizedRow) Map() map[string]string {
	m := make(map[string]string, len(r.keys))
	for _, k := range r.keys {
		m[k] = r.values[k]
	}
	return m
}

// RowFromPairs builds a row from alternating label, value arguments.
func RowFromPairs(kv ...string) NormalizedRow {
	var r NormalizedRow
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

// MarshalJSON writes the row as a JSON object with labels in insertion order.
func (r NormalizedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, r.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string values, keeping key order.
func (r *NormalizedRow) UnmarshalJSON(data []byte) error {
	*r = NormalizedRow{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("normalized row: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("normalized row: expected key, got %v", tok)
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("normalized row: value for %q: %w", key, err)
		}
		r.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
