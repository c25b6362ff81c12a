package format

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// flowEdge is one parsed line of an llm document's flow section.
type flowEdge struct {
	Source    string
	Target    string
	Condition string
	Variable  string
}

var (
	// target [condition]: "variable"
	edgeTargetPattern = regexp.MustCompile(`^(\w+)(?:\s*\[([^\]]+)\])?(?:\s*:\s*"([^"]+)")?`)
	// source -> target [condition]: "variable"
	edgeLinePattern = regexp.MustCompile(`^(\w+)\s*->\s*(\w+)(?:\s*\[([^\]]+)\])?(?:\s*:\s*"([^"]+)")?`)
)

func parseEdgeLine(s string) (flowEdge, bool) {
	m := edgeLinePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return flowEdge{}, false
	}
	return flowEdge{
		Source:    m[1],
		Target:    m[2],
		Condition: strings.TrimSpace(m[3]),
		Variable:  strings.TrimSpace(m[4]),
	}, true
}

func parseEdgeTarget(source, s string) (flowEdge, bool) {
	m := edgeTargetPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return flowEdge{}, false
	}
	return flowEdge{
		Source:    strings.TrimSpace(source),
		Target:    m[1],
		Condition: strings.TrimSpace(m[2]),
		Variable:  strings.TrimSpace(m[3]),
	}, true
}

// String renders e in the list form accepted by parseEdgeLine.
func (e flowEdge) String() string {
	var b strings.Builder
	b.WriteString(e.Source)
	b.WriteString(" -> ")
	b.WriteString(e.Target)
	if e.Condition != "" {
		b.WriteString(" [" + e.Condition + "]")
	}
	if e.Variable != "" {
		b.WriteString(`: "` + e.Variable + `"`)
	}
	return b.String()
}

// negated reports whether a condition selects the false branch.
func (e flowEdge) negated() bool {
	return strings.Contains(e.Condition, "not") || strings.HasPrefix(e.Condition, "!")
}

// parseFlow reads a flow section in any of its accepted shapes:
//
//	flow:                    # list form, items are text or one-pair mappings
//	  - a -> b [ok]: "x"
//	flow:                    # map form, value is one target or a list
//	  a: b
//	  c: ['d [not ok]: "y"', e]
//	flow: |                  # block form, one edge per line
//	  a -> b
//	flow:                    # map form with arrows in the keys
//	  a -> b: "x"
//
// Lines that do not parse are returned in bad.
func parseFlow(n *yaml.Node) (edges []flowEdge, bad []string, err error) {
	if n == nil || n.Kind == 0 {
		return nil, nil, nil
	}

	addLine := func(s string) {
		if strings.TrimSpace(s) == "" {
			return
		}
		if e, ok := parseEdgeLine(s); ok {
			edges = append(edges, e)
		} else {
			bad = append(bad, s)
		}
	}
	addTarget := func(source, s string) {
		if e, ok := parseEdgeTarget(source, s); ok {
			edges = append(edges, e)
		} else {
			bad = append(bad, source+": "+s)
		}
	}

	addPairs := func(m *yaml.Node) error {
		for i := 0; i+1 < len(m.Content); i += 2 {
			key, val := m.Content[i].Value, m.Content[i+1]
			if strings.Contains(key, "->") {
				e, ok := parseEdgeLine(key)
				if !ok {
					bad = append(bad, key)
					continue
				}
				if val.Kind == yaml.ScalarNode && val.Tag != "!!null" {
					e.Variable = strings.TrimSpace(val.Value)
				}
				edges = append(edges, e)
				continue
			}
			switch val.Kind {
			case yaml.ScalarNode:
				addTarget(key, val.Value)
			case yaml.SequenceNode:
				for _, item := range val.Content {
					addTarget(key, item.Value)
				}
			default:
				return fmt.Errorf("flow line %d: unsupported value for %q", val.Line, key)
			}
		}
		return nil
	}

	switch n.Kind {
	case yaml.ScalarNode:
		for _, line := range strings.Split(n.Value, "\n") {
			addLine(line)
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				addLine(item.Value)
			case yaml.MappingNode:
				// `- a -> b: "x"` is read by YAML as a one-pair mapping.
				if err := addPairs(item); err != nil {
					return nil, nil, err
				}
			default:
				return nil, nil, fmt.Errorf("flow line %d: expected a string", item.Line)
			}
		}
	case yaml.MappingNode:
		if err := addPairs(n); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("flow line %d: expected list, mapping or text", n.Line)
	}
	return edges, bad, nil
}
