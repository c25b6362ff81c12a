package diagramkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for diagram structure.
var (
	// ErrInvalidHandleID indicates a handle id that cannot be parsed.
	ErrInvalidHandleID = errors.New("invalid handle id")

	// ErrUnknownNodeKind indicates a node type with no registered spec.
	ErrUnknownNodeKind = errors.New("unknown node kind")

	// ErrIncompatibleHandles indicates a connection rejected by AreHandlesCompatible.
	ErrIncompatibleHandles = errors.New("incompatible handles")

	// ErrDuplicateID indicates two elements of the same kind share an id.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNodeNotFound indicates a reference to a node that does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrHandleNotFound indicates a reference to a handle that does not exist.
	ErrHandleNotFound = errors.New("handle not found")

	// ErrPersonNotFound indicates a reference to a person that does not exist.
	ErrPersonNotFound = errors.New("person not found")

	// ErrAPIKeyNotFound indicates a reference to an API key that does not exist.
	ErrAPIKeyNotFound = errors.New("api key not found")
)

// DuplicateIDError reports an id seen twice while building a store.
type DuplicateIDError struct {
	// Kind is the element kind ("node", "handle", "arrow", "person", "apiKey").
	Kind string
	// ID is the repeated identifier.
	ID string
}

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id %q", e.Kind, e.ID)
}

// Unwrap returns ErrDuplicateID for errors.Is support.
func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

// ReferenceError reports an element pointing at something that does not exist.
type ReferenceError struct {
	// From is the referencing element ("arrow arrow-1", "handle n1:x:input").
	From string
	// To is the missing identifier.
	To string
	// Err is ErrNodeNotFound, ErrHandleNotFound or ErrPersonNotFound.
	Err error
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s references %q: %v", e.From, e.To, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ReferenceError) Unwrap() error {
	return e.Err
}
