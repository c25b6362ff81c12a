package format

import (
	"fmt"
	"slices"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/template"
)

// Variables lists the {{placeholders}} found in one node's prompt-bearing
// fields.
type Variables struct {
	NodeID diagramkit.NodeID `json:"nodeId"`
	Label  string            `json:"label,omitempty"`
	Names  []string          `json:"names"`
}

// ScanVariables reports the placeholders used by each node of d, in node
// order. Nodes without placeholders are left out. The scan is a hint for
// editors; nothing is validated.
func ScanVariables(d diagramkit.Diagram, catalog *nodes.Catalog) []Variables {
	if catalog == nil {
		catalog = nodes.NewCatalog()
	}
	var out []Variables
	for _, n := range d.Nodes {
		var names []string
		for _, field := range catalog.PromptFields(n.Type) {
			s, ok := n.Data[field].(string)
			if !ok {
				continue
			}
			for _, name := range template.Placeholders(s) {
				if !slices.Contains(names, name) {
					names = append(names, name)
				}
			}
		}
		if len(names) > 0 {
			out = append(out, Variables{NodeID: n.ID, Label: n.Label(), Names: names})
		}
	}
	return out
}

// AllVariables merges a scan into one sorted, de-duplicated list.
func AllVariables(scan []Variables) []string {
	var all []string
	for _, v := range scan {
		all = append(all, v.Names...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// RenderedPrompt is one prompt field after placeholder expansion.
type RenderedPrompt struct {
	NodeID diagramkit.NodeID `json:"nodeId"`
	Label  string            `json:"label,omitempty"`
	Field  string            `json:"field"`
	Text   string            `json:"text"`
}

// RenderPrompts expands the prompt fields of every node of d with vars.
// It returns the rendered fields in node order and a copy of d carrying
// them; d itself is not modified. A nil exp keeps unknown placeholders.
// With template.MissingError the first node referencing an undefined
// variable aborts the render.
func RenderPrompts(d diagramkit.Diagram, vars map[string]any, exp *template.Expander, catalog *nodes.Catalog) (diagramkit.Diagram, []RenderedPrompt, error) {
	if exp == nil {
		exp = template.NewExpander()
	}
	if catalog == nil {
		catalog = nodes.NewCatalog()
	}

	out := d
	out.Nodes = make([]diagramkit.Node, len(d.Nodes))
	var rendered []RenderedPrompt
	for i, n := range d.Nodes {
		n = n.Clone()
		fields := make(map[string]any)
		for _, field := range catalog.PromptFields(n.Type) {
			if s, ok := n.Data[field].(string); ok {
				fields[field] = s
			}
		}
		if len(fields) > 0 {
			expanded, err := exp.ExpandMap(fields, vars)
			if err != nil {
				return diagramkit.Diagram{}, nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
			for _, field := range catalog.PromptFields(n.Type) {
				text, ok := expanded[field].(string)
				if !ok {
					continue
				}
				n.Data[field] = text
				rendered = append(rendered, RenderedPrompt{NodeID: n.ID, Label: n.Label(), Field: field, Text: text})
			}
		}
		out.Nodes[i] = n
	}
	return out, rendered, nil
}
