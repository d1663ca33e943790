// Package extract pulls well-formed JSON objects out of free-form model
// output. Models are asked to emit JSON commands only, but in practice they
// wrap them in prose, fences, or newline-separated batches; this package
// recovers whatever valid objects are present and ignores the rest.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Objects returns every JSON object found in text, in source order.
//
// Three encodings are tolerated:
//   - a bare JSON array (non-object elements are silently dropped),
//   - one or more objects separated by prose or newlines,
//   - a single object.
//
// Malformed fragments are skipped rather than aborting the scan. Text with no
// decodable JSON yields an empty slice, never an error.
func Objects(text string) []json.RawMessage {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}

	// Array fast path. Fall through to the scan when the whole text does not
	// parse as one array (e.g. trailing commentary after the closing bracket).
	if s[0] == '[' {
		if objs, ok := arrayObjects([]byte(s)); ok {
			return objs
		}
	}

	var out []json.RawMessage
	data := []byte(s)
	for i := 0; i < len(data); {
		if data[i] != '{' && data[i] != '[' {
			i++
			continue
		}
		value, n, err := decodeOne(data[i:])
		if err != nil {
			i++
			continue
		}
		switch value[0] {
		case '{':
			out = append(out, value)
		case '[':
			if objs, ok := arrayObjects(value); ok {
				out = append(out, objs...)
			}
		}
		i += n
	}
	return out
}

// decodeOne decodes exactly one JSON value at the start of data, returning the
// raw value and the number of input bytes it consumed.
func decodeOne(data []byte) (json.RawMessage, int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return nil, 0, err
	}
	return value, int(dec.InputOffset()), nil
}

// arrayObjects parses data as a JSON array and returns its object elements.
// ok is false when data is not a well-formed array.
func arrayObjects(data []byte) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, false
	}
	out := make([]json.RawMessage, 0, len(elems))
	for _, e := range elems {
		if t := bytes.TrimSpace(e); len(t) > 0 && t[0] == '{' {
			out = append(out, t)
		}
	}
	return out, true
}
