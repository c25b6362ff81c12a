package benchmarks

import (
	"fmt"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
)

// chainDiagram builds start -> person_job x n -> endpoint with one person.
func chainDiagram(n int) diagramkit.Diagram {
	catalog := nodes.NewCatalog()
	d := diagramkit.Diagram{
		Persons: []diagramkit.Person{
			{ID: "p1", Label: "Writer", LLMConfig: diagramkit.LLMConfig{Service: "openai", Model: "gpt-4o"}},
		},
		Metadata: &diagramkit.Metadata{Name: fmt.Sprintf("chain-%d", n)},
	}

	add := func(id diagramkit.NodeID, kind diagramkit.NodeKind, x float64, data map[string]any) {
		d.Nodes = append(d.Nodes, diagramkit.Node{ID: id, Type: kind, Position: diagramkit.Vec2{X: x}, Data: data})
		d.Handles = append(d.Handles, catalog.DefaultHandles(id, kind)...)
	}
	connect := func(i int, from, to diagramkit.NodeID) {
		d.Arrows = append(d.Arrows, diagramkit.Arrow{
			ID:     diagramkit.ArrowID(fmt.Sprintf("a%d", i)),
			Source: diagramkit.CreateHandleID(from, "default", diagramkit.Output),
			Target: diagramkit.CreateHandleID(to, "default", diagramkit.Input),
		})
	}

	add("start", diagramkit.KindStart, 0, map[string]any{"label": "Start"})
	prev := diagramkit.NodeID("start")
	for i := 0; i < n; i++ {
		id := nodeID(i)
		add(id, diagramkit.KindPersonJob, float64(i+1)*250, map[string]any{
			"label":         fmt.Sprintf("Step %d", i),
			"personId":      "p1",
			"defaultPrompt": "Continue from {{previous}} with {{topic}}",
			"maxIteration":  1,
		})
		connect(i, prev, id)
		prev = id
	}
	add("end", diagramkit.KindEndpoint, float64(n+1)*250, map[string]any{"label": "End", "saveToFile": false})
	connect(n, prev, "end")
	return d
}

func nodeID(i int) diagramkit.NodeID {
	return diagramkit.NodeID(fmt.Sprintf("step-%d", i))
}
