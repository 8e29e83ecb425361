package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes rec as compact JSON. Non-ASCII text and HTML-significant
// characters are written verbatim.
func Encode(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.Sentidos == nil {
		rec.Sentidos = []Sentido{}
	}
	return &rec, nil
}
