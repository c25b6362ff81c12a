package labels

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidExport is the sentinel wrapped by every import failure caused
// by the payload itself.
var ErrInvalidExport = errors.New("invalid export data")

// Result is the outcome of Validate.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationError aggregates structural problems found before import.
type ValidationError struct {
	Errors []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidExport, strings.Join(e.Errors, "; "))
}

// Unwrap returns ErrInvalidExport for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidExport
}

// Validate performs structural checks on a decoded export document:
// nodes and arrows must be arrays, persons and apiKeys must be arrays when
// present, every node needs a label, a type and a numeric {x, y} position,
// and every arrow needs sourceLabel, targetLabel, sourceHandle and
// targetHandle.
//
// Label references are not resolved here. Import skips arrows that do not
// resolve.
func Validate(raw map[string]any) Result {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if raw == nil {
		return Result{Valid: false, Errors: []string{"document is empty"}}
	}

	if v, ok := raw["version"]; ok {
		if _, isString := v.(string); !isString {
			add("version must be a string")
		}
	}

	nodes, ok := raw["nodes"].([]any)
	if !ok {
		add("nodes must be an array")
	}
	for i, item := range nodes {
		n, ok := item.(map[string]any)
		if !ok {
			add("nodes[%d] must be an object", i)
			continue
		}
		if !nonEmptyString(n["label"]) {
			add("nodes[%d]: missing label", i)
		}
		if !nonEmptyString(n["type"]) {
			add("nodes[%d]: missing type", i)
		}
		if !validPosition(n["position"]) {
			add("nodes[%d]: missing or invalid position", i)
		}
		if d, present := n["data"]; present && d != nil {
			if _, ok := d.(map[string]any); !ok {
				add("nodes[%d]: data must be an object", i)
			}
		}
		if h, present := n["handles"]; present && h != nil {
			if _, ok := h.([]any); !ok {
				add("nodes[%d]: handles must be an array", i)
			}
		}
	}

	arrows, ok := raw["arrows"].([]any)
	if !ok {
		add("arrows must be an array")
	}
	for i, item := range arrows {
		a, ok := item.(map[string]any)
		if !ok {
			add("arrows[%d] must be an object", i)
			continue
		}
		for _, key := range []string{"sourceLabel", "targetLabel", "sourceHandle", "targetHandle"} {
			if !nonEmptyString(a[key]) {
				add("arrows[%d]: missing %s", i, key)
			}
		}
	}

	for _, key := range []string{"persons", "apiKeys"} {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			add("%s must be an array", key)
			continue
		}
		for i, item := range items {
			if _, ok := item.(map[string]any); !ok {
				add("%s[%d] must be an object", key, i)
			}
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

func validPosition(v any) bool {
	p, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return isNumber(p["x"]) && isNumber(p["y"])
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, uint64:
		return true
	}
	return false
}
