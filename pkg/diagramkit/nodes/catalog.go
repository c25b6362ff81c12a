package nodes

import (
	"fmt"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/registry"
)

// Catalog maps node kinds to their specs. Build one with NewCatalog and
// pass it to the components that need it. Safe for concurrent use.
type Catalog struct {
	specs *registry.Registry[diagramkit.NodeKind, Spec]
}

// NewCatalog returns a catalog holding the built-in kinds.
func NewCatalog() *Catalog {
	c := &Catalog{specs: registry.New[diagramkit.NodeKind, Spec]()}
	for _, s := range builtinSpecs() {
		c.specs.Register(s.Kind, s)
	}
	return c
}

// Register adds or replaces the spec for s.Kind.
func (c *Catalog) Register(s Spec) error {
	if s.Kind == "" {
		return fmt.Errorf("nodes: spec kind is required")
	}
	c.specs.Register(s.Kind, s)
	return nil
}

// Spec returns the spec for kind.
func (c *Catalog) Spec(kind diagramkit.NodeKind) (Spec, bool) {
	return c.specs.Get(kind)
}

// Kinds returns the registered kinds in sorted order.
func (c *Catalog) Kinds() []diagramkit.NodeKind {
	return c.specs.Keys()
}

// DefaultHandles synthesizes the handles a node of kind gets when none are
// given explicitly. Unknown kinds get one "default" input and one
// "default" output so legacy diagrams stay connectable.
func (c *Catalog) DefaultHandles(nodeID diagramkit.NodeID, kind diagramkit.NodeKind) []diagramkit.Handle {
	spec, ok := c.specs.Get(kind)
	if !ok {
		return []diagramkit.Handle{
			diagramkit.NewHandle(nodeID, HandleDefault, diagramkit.Input, diagramkit.TypeAny),
			diagramkit.NewHandle(nodeID, HandleDefault, diagramkit.Output, diagramkit.TypeAny),
		}
	}

	handles := make([]diagramkit.Handle, 0, len(spec.Handles))
	for _, hs := range spec.Handles {
		h := diagramkit.NewHandle(nodeID, hs.Label, hs.Direction, hs.DataType)
		h.Position = hs.Position
		handles = append(handles, h)
	}
	return handles
}

// PromptFields returns the placeholder-bearing data keys for kind.
func (c *Catalog) PromptFields(kind diagramkit.NodeKind) []string {
	spec, _ := c.specs.Get(kind)
	return spec.PromptFields
}

// MissingFields lists required data keys that n leaves empty, including
// keys that are only required in combination with others. The check is
// advisory: diagrams with missing fields still load and convert.
func (c *Catalog) MissingFields(n diagramkit.Node) []string {
	spec, ok := c.specs.Get(n.Type)
	if !ok {
		return nil
	}

	var missing []string
	for _, key := range spec.Required {
		if isEmpty(n.Data[key]) {
			missing = append(missing, key)
		}
	}

	props, err := Decode(n.Type, n.Data)
	if err != nil {
		return missing
	}
	switch p := props.(type) {
	case *ConditionProps:
		if p.ConditionType == ConditionExpression && p.Expression == "" {
			missing = append(missing, KeyExpression)
		}
	case *EndpointProps:
		if p.SaveToFile && p.FilePath == "" {
			missing = append(missing, KeyFilePath)
		}
	case *NotionProps:
		if p.PageID == "" && p.DatabaseID == "" {
			missing = append(missing, KeyPageID)
		}
	case *StartProps, *PersonJobProps, *PersonBatchJobProps, *JobProps, *DBProps, *UserResponseProps:
	}
	return missing
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
