package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/config"
)

// placeholderPattern matches {{name}} and {{ name }}. Names may contain
// dots to address nested values.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*\}\}`)

// Placeholders returns the variable names referenced in s, in order of
// first appearance, without duplicates. Malformed placeholders are ignored.
func Placeholders(s string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Expander substitutes {{var}} placeholders. Safe for concurrent use.
type Expander struct {
	missingAction MissingAction
}

// NewExpander returns an Expander. By default missing variables are kept.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingKeep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces placeholders in s with values from vars. Dotted names
// walk nested maps. An error is returned only with MissingError.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	lookup := config.New(vars)
	var missing []string

	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if lookup.Has(name) {
			return fmt.Sprintf("%v", lookup.Any(name, nil))
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// ExpandMap expands every string value in m, recursing into nested maps.
// The input is not modified.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			s, err := e.Expand(val, vars)
			if err != nil {
				return nil, err
			}
			out[k] = s
		case map[string]any:
			sub, err := e.ExpandMap(val, vars)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		default:
			out[k] = v
		}
	}
	return out, nil
}

// UndefinedVariableError lists placeholders with no value under MissingError.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
