package labels

import (
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// Version is the ExportFormat version written by Export.
const Version = "3.0.0"

// ExportFormat is the label-addressed diagram document. It carries no ids:
// nodes, persons and API keys are named by unique labels, and arrows point
// at "{nodeLabel}-{handleLabel}" compound references.
type ExportFormat struct {
	Version  string         `json:"version" yaml:"version"`
	Nodes    []ExportNode   `json:"nodes" yaml:"nodes"`
	Arrows   []ExportArrow  `json:"arrows" yaml:"arrows"`
	Persons  []ExportPerson `json:"persons" yaml:"persons"`
	APIKeys  []ExportAPIKey `json:"apiKeys" yaml:"apiKeys"`
	Metadata ExportMetadata `json:"metadata" yaml:"metadata"`
}

// ExportNode is a node addressed by label. Data never holds personId; a
// person reference is written as personLabel.
type ExportNode struct {
	Label    string          `json:"label" yaml:"label"`
	Type     string          `json:"type" yaml:"type"`
	Position diagramkit.Vec2 `json:"position" yaml:"position"`
	Data     map[string]any  `json:"data" yaml:"data"`
	Handles  []ExportHandle  `json:"handles,omitempty" yaml:"handles,omitempty"`
}

// ExportHandle is a handle serialized inline with its node.
type ExportHandle struct {
	Label          string `json:"label" yaml:"label"`
	Direction      string `json:"direction" yaml:"direction"`
	DataType       string `json:"dataType" yaml:"dataType"`
	Position       string `json:"position,omitempty" yaml:"position,omitempty"`
	MaxConnections *int   `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
}

// ExportArrow connects two compound handle references. Data carries the
// arrow's label, contentType and branch alongside any free-form fields.
type ExportArrow struct {
	SourceLabel  string         `json:"sourceLabel" yaml:"sourceLabel"`
	TargetLabel  string         `json:"targetLabel" yaml:"targetLabel"`
	SourceHandle string         `json:"sourceHandle" yaml:"sourceHandle"`
	TargetHandle string         `json:"targetHandle" yaml:"targetHandle"`
	Label        string         `json:"label,omitempty" yaml:"label,omitempty"`
	ContentType  string         `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Branch       *bool          `json:"branch,omitempty" yaml:"branch,omitempty"`
	Data         map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// ExportPerson is a person addressed by name.
type ExportPerson struct {
	Name           string   `json:"name" yaml:"name"`
	Model          string   `json:"model" yaml:"model"`
	Service        string   `json:"service" yaml:"service"`
	SystemPrompt   string   `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens      *int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	ForgettingMode string   `json:"forgettingMode,omitempty" yaml:"forgettingMode,omitempty"`
	APIKeyLabel    string   `json:"apiKeyLabel,omitempty" yaml:"apiKeyLabel,omitempty"`
}

// ExportAPIKey names an API key. The secret is never exported.
type ExportAPIKey struct {
	Name    string `json:"name" yaml:"name"`
	Service string `json:"service" yaml:"service"`
}

// ExportMetadata describes the export itself.
type ExportMetadata struct {
	Exported    time.Time `json:"exported" yaml:"exported"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}
