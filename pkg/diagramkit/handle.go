package diagramkit

import (
	"fmt"
	"strings"
)

// handleSep separates the segments of a composite handle id.
const handleSep = ":"

// HandleRef is the decoded form of a HandleID.
type HandleRef struct {
	NodeID    NodeID
	Label     string
	Direction Direction // empty for legacy two-segment ids
}

// CreateHandleID derives a handle's identity from its owning node, label and
// direction: "{nodeId}:{label}:{direction}". Two handles with the same
// triple are the same handle.
func CreateHandleID(nodeID NodeID, label string, dir Direction) HandleID {
	return HandleID(string(nodeID) + handleSep + label + handleSep + string(dir))
}

// ParseHandleID splits a handle id into its parts.
//
// The first segment is the node id. A trailing "input" or "output" segment
// is the direction. Everything in between is rejoined as the label, so
// labels may contain the separator. Legacy "{nodeId}:{label}" ids decode
// with an empty Direction.
func ParseHandleID(id HandleID) (HandleRef, error) {
	parts := strings.Split(string(id), handleSep)
	if len(parts) < 2 || parts[0] == "" {
		return HandleRef{}, fmt.Errorf("%w: %q", ErrInvalidHandleID, id)
	}

	ref := HandleRef{NodeID: NodeID(parts[0])}
	rest := parts[1:]
	if len(rest) > 1 {
		last := Direction(rest[len(rest)-1])
		if last == Input || last == Output {
			ref.Direction = last
			rest = rest[:len(rest)-1]
		}
	}
	ref.Label = strings.Join(rest, handleSep)
	if ref.Label == "" {
		return HandleRef{}, fmt.Errorf("%w: empty label in %q", ErrInvalidHandleID, id)
	}
	return ref, nil
}

// AreHandlesCompatible is the connection admission rule: the source must be
// an output, the target an input, and the data types must match unless
// either side accepts any. MaxConnections is not checked here.
func AreHandlesCompatible(source, target Handle) bool {
	if source.Direction != Output || target.Direction != Input {
		return false
	}
	if source.DataType == TypeAny || target.DataType == TypeAny {
		return true
	}
	return source.DataType == target.DataType
}
