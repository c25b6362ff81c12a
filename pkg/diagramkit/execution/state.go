package execution

import (
	"maps"
	"slices"
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// Status is the lifecycle state of an execution or of one node within it.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRunning        Status = "running"
	StatusPaused         Status = "paused"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusAborted        Status = "aborted"
	StatusSkipped        Status = "skipped"
	StatusMaxIterReached Status = "maxiter_reached"
)

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPaused, StatusCompleted,
		StatusFailed, StatusAborted, StatusSkipped, StatusMaxIterReached:
		return true
	}
	return false
}

// Terminal reports whether no further progress follows s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted, StatusSkipped, StatusMaxIterReached:
		return true
	}
	return false
}

// TokenUsage counts LLM tokens.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Cached int `json:"cached,omitempty"`
}

// Total returns Input + Output.
func (t TokenUsage) Total() int { return t.Input + t.Output }

// Add returns the element-wise sum of t and o.
func (t TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		Input:  t.Input + o.Input,
		Output: t.Output + o.Output,
		Cached: t.Cached + o.Cached,
	}
}

// NodeState is the progress of one node.
type NodeState struct {
	NodeID     diagramkit.NodeID `json:"nodeId"`
	Status     Status            `json:"status"`
	Started    time.Time         `json:"started,omitzero"`
	Ended      time.Time         `json:"ended,omitzero"`
	Iterations int               `json:"iterations,omitempty"`
	Error      string            `json:"error,omitempty"`
	Tokens     TokenUsage        `json:"tokens"`
	Output     any               `json:"output,omitempty"`
}

// Message is one transcript entry of a person.
type Message struct {
	PersonID  diagramkit.PersonID `json:"personId"`
	NodeID    diagramkit.NodeID   `json:"nodeId,omitempty"`
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	Timestamp time.Time           `json:"timestamp,omitzero"`
}

// Execution is a snapshot of one monitored run.
type Execution struct {
	ID          diagramkit.ExecutionID            `json:"id"`
	DiagramID   diagramkit.DiagramID              `json:"diagramId,omitempty"`
	Status      Status                            `json:"status"`
	Started     time.Time                         `json:"started,omitzero"`
	Ended       time.Time                         `json:"ended,omitzero"`
	Error       string                            `json:"error,omitempty"`
	Nodes       map[diagramkit.NodeID]NodeState   `json:"nodes"`
	Tokens      TokenUsage                        `json:"tokens"`
	Transcripts map[diagramkit.PersonID][]Message `json:"transcripts"`

	// Updates counts applied updates. Sequence is the highest Update.Sequence seen.
	Updates  int   `json:"updates"`
	Sequence int64 `json:"sequence,omitempty"`

	// rev is stamped by the Monitor on every stored change and only grows.
	rev uint64
}

func newExecution(id diagramkit.ExecutionID, diagramID diagramkit.DiagramID, now time.Time) Execution {
	return Execution{
		ID:          id,
		DiagramID:   diagramID,
		Status:      StatusRunning,
		Started:     now,
		Nodes:       make(map[diagramkit.NodeID]NodeState),
		Transcripts: make(map[diagramkit.PersonID][]Message),
	}
}

// Clone returns a copy of e that shares no maps or slices with it.
// Node outputs are copied by reference.
func (e Execution) Clone() Execution {
	e.Nodes = maps.Clone(e.Nodes)
	if e.Nodes == nil {
		e.Nodes = make(map[diagramkit.NodeID]NodeState)
	}
	transcripts := make(map[diagramkit.PersonID][]Message, len(e.Transcripts))
	for p, msgs := range e.Transcripts {
		transcripts[p] = slices.Clone(msgs)
	}
	e.Transcripts = transcripts
	return e
}

// Counts returns how many nodes are in each status.
func (e Execution) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, n := range e.Nodes {
		out[n.Status]++
	}
	return out
}

// Transcript returns the messages of one person in arrival order.
func (e Execution) Transcript(p diagramkit.PersonID) []Message {
	return slices.Clone(e.Transcripts[p])
}
