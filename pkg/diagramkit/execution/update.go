package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// UpdateKind names what an Update changes.
type UpdateKind string

const (
	KindExecutionStatus UpdateKind = "execution_status"
	KindNodeStatus      UpdateKind = "node_status"
	KindTokenUsage      UpdateKind = "token_usage"
	KindMessage         UpdateKind = "message"
)

// Update is one push notification about a running execution, as delivered
// by a subscription.
type Update struct {
	ExecutionID diagramkit.ExecutionID `json:"executionId"`
	Kind        UpdateKind             `json:"kind"`

	// Sequence orders updates of one execution. When positive, an update
	// whose Sequence is not above the last applied one is ignored.
	Sequence int64 `json:"sequence,omitempty"`

	Timestamp time.Time         `json:"timestamp,omitzero"`
	NodeID    diagramkit.NodeID `json:"nodeId,omitempty"`
	Status    Status            `json:"status,omitempty"`
	Error     string            `json:"error,omitempty"`
	Output    any               `json:"output,omitempty"`
	Tokens    TokenUsage        `json:"tokens,omitzero"`
	Message   *Message          `json:"message,omitempty"`
}

// Sentinel errors for execution monitoring.
var (
	// ErrInvalidUpdate indicates an update missing the fields its kind needs.
	ErrInvalidUpdate = errors.New("invalid execution update")

	// ErrAlreadyActive indicates Start on an execution that has not finished.
	ErrAlreadyActive = errors.New("execution already active")

	// ErrInvalidExecutionID indicates an id rejected by diagramkit.IsExecutionID.
	ErrInvalidExecutionID = errors.New("invalid execution id")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidUpdate, fmt.Sprintf(format, args...))
}

// Validate checks that u carries what its kind requires.
func (u Update) Validate() error {
	if u.ExecutionID == "" {
		return invalidf("missing execution id")
	}
	switch u.Kind {
	case KindExecutionStatus:
		if !u.Status.Known() {
			return invalidf("unknown status %q", u.Status)
		}
	case KindNodeStatus:
		if u.NodeID == "" {
			return invalidf("node status without node id")
		}
		if !u.Status.Known() {
			return invalidf("unknown status %q", u.Status)
		}
	case KindTokenUsage:
		if u.Tokens.Input < 0 || u.Tokens.Output < 0 || u.Tokens.Cached < 0 {
			return invalidf("negative token count")
		}
	case KindMessage:
		if u.Message == nil {
			return invalidf("message update without message")
		}
		if u.Message.PersonID == "" {
			return invalidf("message without person id")
		}
	default:
		return invalidf("unknown kind %q", u.Kind)
	}
	return nil
}

// apply folds u into e, which the caller owns.
func (u Update) apply(e *Execution, at time.Time, transcriptLimit int) {
	switch u.Kind {
	case KindExecutionStatus:
		e.Status = u.Status
		if u.Status == StatusRunning && e.Started.IsZero() {
			e.Started = at
		}
		if u.Status.Terminal() {
			e.Ended = at
			e.Error = u.Error
		}

	case KindNodeStatus:
		ns, ok := e.Nodes[u.NodeID]
		if !ok {
			ns = NodeState{NodeID: u.NodeID}
		}
		ns.Status = u.Status
		switch {
		case u.Status == StatusRunning:
			ns.Started = at
			ns.Ended = time.Time{}
			ns.Error = ""
			ns.Iterations++
		case u.Status.Terminal():
			ns.Ended = at
			ns.Error = u.Error
		}
		if u.Output != nil {
			ns.Output = u.Output
		}
		e.Nodes[u.NodeID] = ns

	case KindTokenUsage:
		e.Tokens = e.Tokens.Add(u.Tokens)
		if u.NodeID != "" {
			ns, ok := e.Nodes[u.NodeID]
			if !ok {
				ns = NodeState{NodeID: u.NodeID, Status: StatusPending}
			}
			ns.Tokens = ns.Tokens.Add(u.Tokens)
			e.Nodes[u.NodeID] = ns
		}

	case KindMessage:
		msg := *u.Message
		if msg.Timestamp.IsZero() {
			msg.Timestamp = at
		}
		if msg.NodeID == "" {
			msg.NodeID = u.NodeID
		}
		msgs := append(e.Transcripts[msg.PersonID], msg)
		if transcriptLimit > 0 && len(msgs) > transcriptLimit {
			msgs = msgs[len(msgs)-transcriptLimit:]
		}
		e.Transcripts[msg.PersonID] = msgs
	}

	e.Updates++
	if u.Sequence > e.Sequence {
		e.Sequence = u.Sequence
	}
}
