package diagramkit

import "regexp"

// Identifier types. Each kind of diagram element gets its own named string
// type so a NodeID cannot be passed where a PersonID is expected.
//
// Wrapping is a plain conversion:
//
//	id := diagramkit.NodeID("start-1")
type (
	NodeID      string
	ArrowID     string
	HandleID    string
	PersonID    string
	APIKeyID    string
	DiagramID   string
	ExecutionID string
)

// Format patterns for the advisory Is* guards.
var (
	nodeIDPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	arrowIDPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	handleIDPattern    = regexp.MustCompile(`^[^:\s]+:[^\s].*$`)
	personIDPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	apiKeyIDPattern    = regexp.MustCompile(`^APIKEY_[A-Za-z0-9]+$`)
	uuidLikePattern    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	diagramIDPattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	executionIDPattern = regexp.MustCompile(`^(exec[_-])?[A-Za-z0-9][A-Za-z0-9_-]*$`)
)

// IsNodeID reports whether s looks like a node identifier.
// The guards are advisory: they never reject ids already in a diagram,
// callers use them to flag suspicious values.
func IsNodeID(s string) bool { return nodeIDPattern.MatchString(s) }

// IsArrowID reports whether s looks like an arrow identifier.
func IsArrowID(s string) bool { return arrowIDPattern.MatchString(s) }

// IsHandleID reports whether s looks like a composite handle identifier.
func IsHandleID(s string) bool { return handleIDPattern.MatchString(s) }

// IsPersonID reports whether s looks like a person identifier.
func IsPersonID(s string) bool { return personIDPattern.MatchString(s) }

// IsAPIKeyID reports whether s matches APIKEY_[A-Za-z0-9]+.
func IsAPIKeyID(s string) bool { return apiKeyIDPattern.MatchString(s) }

// IsDiagramID reports whether s looks like a diagram identifier.
func IsDiagramID(s string) bool {
	return uuidLikePattern.MatchString(s) || diagramIDPattern.MatchString(s)
}

// IsExecutionID reports whether s looks like an execution identifier.
func IsExecutionID(s string) bool {
	return uuidLikePattern.MatchString(s) || executionIDPattern.MatchString(s)
}
