package diagramkit

import (
	"fmt"
	"strings"
	"time"
)

// NodeKind identifies the type of a node.
type NodeKind string

// Built-in node kinds.
const (
	KindStart          NodeKind = "start"
	KindPersonJob      NodeKind = "person_job"
	KindPersonBatchJob NodeKind = "person_batch_job"
	KindCondition      NodeKind = "condition"
	KindJob            NodeKind = "job"
	KindEndpoint       NodeKind = "endpoint"
	KindDB             NodeKind = "db"
	KindUserResponse   NodeKind = "user_response"
	KindNotion         NodeKind = "notion"
)

// AllKinds lists the built-in node kinds in palette order.
var AllKinds = []NodeKind{
	KindStart,
	KindPersonJob,
	KindPersonBatchJob,
	KindCondition,
	KindJob,
	KindEndpoint,
	KindDB,
	KindUserResponse,
	KindNotion,
}

// ParseNodeKind converts s to a NodeKind.
// Accepts the canonical snake_case spelling, the upper-case GraphQL enum
// spelling ("PERSON_JOB"), and legacy "personjobNode"-style names.
func ParseNodeKind(s string) (NodeKind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimSuffix(norm, "node")
	for _, k := range AllKinds {
		if norm == string(k) || norm == strings.ReplaceAll(string(k), "_", "") {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNodeKind, s)
}

// Known reports whether k is one of the built-in kinds.
func (k NodeKind) Known() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Direction is the flow direction of a handle.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// ParseDirection accepts "input"/"output" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	}
	return "", fmt.Errorf("invalid handle direction %q", s)
}

// DataType is the kind of value a handle carries.
type DataType string

const (
	TypeAny     DataType = "any"
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeObject  DataType = "object"
	TypeArray   DataType = "array"
)

// ParseDataType converts s to a DataType. Empty input yields TypeAny.
func ParseDataType(s string) (DataType, error) {
	switch DataType(strings.ToLower(s)) {
	case "", TypeAny:
		return TypeAny, nil
	case TypeString:
		return TypeString, nil
	case TypeNumber:
		return TypeNumber, nil
	case TypeBoolean:
		return TypeBoolean, nil
	case TypeObject:
		return TypeObject, nil
	case TypeArray:
		return TypeArray, nil
	}
	return "", fmt.Errorf("invalid data type %q", s)
}

// Vec2 is a canvas position in pixels.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a diagram step. Data holds the type-specific fields plus the
// display label ("label") and the optional UI flag "flipped".
type Node struct {
	ID       NodeID         `json:"id"`
	Type     NodeKind       `json:"type"`
	Position Vec2           `json:"position"`
	Data     map[string]any `json:"data"`
}

// Well-known keys in Node.Data.
const (
	DataLabel       = "label"
	DataPersonID    = "personId"
	DataPersonLabel = "personLabel"
	DataFlipped     = "flipped"
)

// Label returns the display label, or "" when unset.
func (n Node) Label() string {
	s, _ := n.Data[DataLabel].(string)
	return s
}

// PersonID returns the referenced person, or "" when the node has none.
func (n Node) PersonID() PersonID {
	s, _ := n.Data[DataPersonID].(string)
	return PersonID(s)
}

// Clone returns a copy of n whose Data map can be modified independently.
func (n Node) Clone() Node {
	n.Data = CloneData(n.Data)
	return n
}

// Handle is a typed connection point on a node.
// Its ID is always CreateHandleID(NodeID, Label, Direction).
type Handle struct {
	ID             HandleID  `json:"id"`
	NodeID         NodeID    `json:"nodeId"`
	Label          string    `json:"label"`
	Direction      Direction `json:"direction"`
	DataType       DataType  `json:"dataType"`
	Position       string    `json:"position,omitempty"`
	MaxConnections *int      `json:"maxConnections,omitempty"`
}

// NewHandle builds a handle with its derived ID.
func NewHandle(nodeID NodeID, label string, dir Direction, dt DataType) Handle {
	return Handle{
		ID:        CreateHandleID(nodeID, label, dir),
		NodeID:    nodeID,
		Label:     label,
		Direction: dir,
		DataType:  dt,
	}
}

// Arrow connects an output handle to an input handle.
type Arrow struct {
	ID          ArrowID        `json:"id"`
	Source      HandleID       `json:"source"`
	Target      HandleID       `json:"target"`
	Label       string         `json:"label,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Branch      *bool          `json:"branch,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Arrow data keys for the bezier control point offset.
const (
	DataControlOffsetX = "controlPointOffsetX"
	DataControlOffsetY = "controlPointOffsetY"
)

// LLMConfig configures the model behind a person.
type LLMConfig struct {
	Service        string   `json:"service"`
	Model          string   `json:"model"`
	APIKeyID       APIKeyID `json:"apiKeyId,omitempty"`
	SystemPrompt   string   `json:"systemPrompt,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      *int     `json:"maxTokens,omitempty"`
	ForgettingMode string   `json:"forgettingMode,omitempty"`
}

// Person is an LLM agent referenced by prompt-executing nodes through
// data.personId. Deleting a person does not delete the nodes using it.
type Person struct {
	ID           PersonID  `json:"id"`
	Label        string    `json:"label"`
	LLMConfig    LLMConfig `json:"llmConfig"`
	MaskedAPIKey string    `json:"maskedApiKey,omitempty"`
}

// APIKey is a stored credential reference. Only the masked form is kept.
type APIKey struct {
	ID        APIKeyID `json:"id"`
	Label     string   `json:"label"`
	Service   string   `json:"service"`
	MaskedKey string   `json:"maskedKey,omitempty"`
}

// MaskKey returns the display form of a raw secret: the first three and
// last four characters around a fixed run of asterisks. Short keys are
// masked entirely.
func MaskKey(raw string) string {
	if len(raw) <= 8 {
		return strings.Repeat("*", len(raw))
	}
	return raw[:3] + "********" + raw[len(raw)-4:]
}

// Metadata describes a diagram as a whole.
type Metadata struct {
	ID          DiagramID `json:"id,omitempty"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	Created     time.Time `json:"created,omitzero"`
	Modified    time.Time `json:"modified,omitzero"`
}

// Diagram is the array form of a diagram: the wire and export shape.
// Element order only matters for readability.
type Diagram struct {
	Nodes    []Node    `json:"nodes"`
	Handles  []Handle  `json:"handles"`
	Arrows   []Arrow   `json:"arrows"`
	Persons  []Person  `json:"persons"`
	APIKeys  []APIKey  `json:"apiKeys,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// HandlesOf returns the handles owned by nodeID in diagram order.
func (d Diagram) HandlesOf(nodeID NodeID) []Handle {
	var out []Handle
	for _, h := range d.Handles {
		if h.NodeID == nodeID {
			out = append(out, h)
		}
	}
	return out
}

// CloneData deep-copies a node or arrow data bag. Nested maps and slices
// are copied; other values are shared.
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
