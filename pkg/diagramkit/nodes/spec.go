package nodes

import "github.com/randalmurphal/diagramkit/pkg/diagramkit"

// Handle sides on the canvas.
const (
	SideLeft   = "left"
	SideRight  = "right"
	SideTop    = "top"
	SideBottom = "bottom"
)

// Common handle labels.
const (
	HandleDefault = "default"
	HandleFirst   = "first"
	HandleTrue    = "true"
	HandleFalse   = "false"
)

// HandleSpec describes one connection point every node of a kind gets.
type HandleSpec struct {
	Label     string
	Direction diagramkit.Direction
	DataType  diagramkit.DataType
	Position  string
}

// Spec is the static description of a node kind.
type Spec struct {
	Kind        diagramkit.NodeKind
	DisplayName string
	Handles     []HandleSpec

	// Required lists data keys a runnable node of this kind must set.
	Required []string

	// PromptFields lists data keys whose text may contain {{var}} placeholders.
	PromptFields []string
}

func in(label string, dt diagramkit.DataType) HandleSpec {
	return HandleSpec{Label: label, Direction: diagramkit.Input, DataType: dt, Position: SideLeft}
}

func out(label string, dt diagramkit.DataType) HandleSpec {
	return HandleSpec{Label: label, Direction: diagramkit.Output, DataType: dt, Position: SideRight}
}

// builtinSpecs returns the specs registered by NewCatalog, in palette order.
func builtinSpecs() []Spec {
	return []Spec{
		{
			Kind:        diagramkit.KindStart,
			DisplayName: "Start",
			Handles:     []HandleSpec{out(HandleDefault, diagramkit.TypeAny)},
		},
		{
			Kind:        diagramkit.KindPersonJob,
			DisplayName: "Person Job",
			Handles: []HandleSpec{
				{Label: HandleFirst, Direction: diagramkit.Input, DataType: diagramkit.TypeAny, Position: SideTop},
				in(HandleDefault, diagramkit.TypeAny),
				out(HandleDefault, diagramkit.TypeAny),
			},
			Required:     []string{KeyPersonID, KeyDefaultPrompt},
			PromptFields: []string{KeyFirstOnlyPrompt, KeyDefaultPrompt},
		},
		{
			Kind:         diagramkit.KindPersonBatchJob,
			DisplayName:  "Person Batch Job",
			Handles:      []HandleSpec{in(HandleDefault, diagramkit.TypeAny), out(HandleDefault, diagramkit.TypeAny)},
			Required:     []string{KeyPersonID, KeyPrompt},
			PromptFields: []string{KeyPrompt},
		},
		{
			Kind:        diagramkit.KindCondition,
			DisplayName: "Condition",
			Handles: []HandleSpec{
				in(HandleDefault, diagramkit.TypeAny),
				out(HandleTrue, diagramkit.TypeBoolean),
				{Label: HandleFalse, Direction: diagramkit.Output, DataType: diagramkit.TypeBoolean, Position: SideBottom},
			},
			Required:     []string{KeyConditionType},
			PromptFields: []string{KeyExpression},
		},
		{
			Kind:        diagramkit.KindJob,
			DisplayName: "Job",
			Handles:     []HandleSpec{in(HandleDefault, diagramkit.TypeAny), out(HandleDefault, diagramkit.TypeAny)},
			Required:    []string{KeyCode},
		},
		{
			Kind:         diagramkit.KindEndpoint,
			DisplayName:  "Endpoint",
			Handles:      []HandleSpec{in(HandleDefault, diagramkit.TypeAny)},
			PromptFields: []string{KeyFilePath},
		},
		{
			Kind:         diagramkit.KindDB,
			DisplayName:  "DB",
			Handles:      []HandleSpec{in(HandleDefault, diagramkit.TypeAny), out(HandleDefault, diagramkit.TypeAny)},
			Required:     []string{KeySubType, KeySourceDetails},
			PromptFields: []string{KeySourceDetails},
		},
		{
			Kind:         diagramkit.KindUserResponse,
			DisplayName:  "User Response",
			Handles:      []HandleSpec{in(HandleDefault, diagramkit.TypeAny), out(HandleDefault, diagramkit.TypeString)},
			Required:     []string{KeyPrompt},
			PromptFields: []string{KeyPrompt},
		},
		{
			Kind:        diagramkit.KindNotion,
			DisplayName: "Notion",
			Handles:     []HandleSpec{in(HandleDefault, diagramkit.TypeAny), out(HandleDefault, diagramkit.TypeObject)},
			Required:    []string{KeyOperation},
		},
	}
}
