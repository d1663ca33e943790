package controller

import (
	"encoding/json"
	"fmt"
)

// Result is the uniform outcome of one command: success with action-specific
// payload keys, or failure with an error message. It marshals to the wire
// shape {"ok": bool, ...} / {"ok": false, "error": "..."}.
type Result struct {
	OK    bool
	Error string
	Extra map[string]any
}

// MarshalJSON flattens the payload next to the ok/error fields.
func (r Result) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		m[k] = v
	}
	m["ok"] = r.OK
	if r.Error != "" {
		m["error"] = r.Error
	}
	return json.Marshal(m)
}

// Get returns a payload value by key.
func (r Result) Get(key string) (any, bool) {
	v, ok := r.Extra[key]
	return v, ok
}

// succeed builds a success result from alternating key/value pairs.
func succeed(kv ...any) Result {
	extra := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		extra[kv[i].(string)] = kv[i+1]
	}
	return Result{OK: true, Extra: extra}
}

// failf builds a failure result.
func failf(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}
