package store

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// DuplicatePolicy decides what FromDiagram does when an id repeats within
// one element array.
type DuplicatePolicy int

const (
	// Overwrite keeps the last element with a given id at the position of
	// the first. This is the default.
	Overwrite DuplicatePolicy = iota

	// Reject fails with a *diagramkit.DuplicateIDError.
	Reject
)

// ParseDuplicatePolicy converts "overwrite" or "reject".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "overwrite":
		return Overwrite, nil
	case "reject":
		return Reject, nil
	}
	return Overwrite, fmt.Errorf("unknown duplicate policy %q", s)
}

// String returns the policy name.
func (p DuplicatePolicy) String() string {
	if p == Reject {
		return "reject"
	}
	return "overwrite"
}

// Option configures FromDiagram.
type Option func(*buildConfig)

type buildConfig struct {
	policy DuplicatePolicy
}

// WithDuplicatePolicy sets how repeated ids are handled.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(c *buildConfig) {
		c.policy = p
	}
}

// FromDiagram converts the array form into a Store, one pass per array.
// Referential integrity is not checked here; see CheckIntegrity.
func FromDiagram(d diagramkit.Diagram, opts ...Option) (*Store, error) {
	cfg := buildConfig{policy: Overwrite}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := New()
	reject := cfg.policy == Reject

	for _, n := range d.Nodes {
		if reject && s.nodes.has(n.ID) {
			return nil, &diagramkit.DuplicateIDError{Kind: "node", ID: string(n.ID)}
		}
		s.nodes.set(n.ID, n.Clone())
	}
	for _, h := range d.Handles {
		if reject && s.handles.has(h.ID) {
			return nil, &diagramkit.DuplicateIDError{Kind: "handle", ID: string(h.ID)}
		}
		s.handles.set(h.ID, h)
	}
	for _, a := range d.Arrows {
		if reject && s.arrows.has(a.ID) {
			return nil, &diagramkit.DuplicateIDError{Kind: "arrow", ID: string(a.ID)}
		}
		s.arrows.set(a.ID, cloneArrow(a))
	}
	for _, p := range d.Persons {
		if reject && s.persons.has(p.ID) {
			return nil, &diagramkit.DuplicateIDError{Kind: "person", ID: string(p.ID)}
		}
		s.persons.set(p.ID, p)
	}
	for _, k := range d.APIKeys {
		if reject && s.apiKeys.has(k.ID) {
			return nil, &diagramkit.DuplicateIDError{Kind: "apiKey", ID: string(k.ID)}
		}
		s.apiKeys.set(k.ID, k)
	}
	if d.Metadata != nil {
		md := *d.Metadata
		s.metadata = &md
	}
	return s, nil
}

// Diagram flattens the store into array form in insertion order.
func (s *Store) Diagram() diagramkit.Diagram {
	d := diagramkit.Diagram{
		Nodes:    s.Nodes(),
		Handles:  s.Handles(),
		Arrows:   s.Arrows(),
		Persons:  s.Persons(),
		APIKeys:  s.APIKeys(),
		Metadata: s.Metadata(),
	}
	return d
}

// CheckIntegrity reports every dangling reference: handles whose node is
// missing, arrows whose endpoint handles or nodes are missing, nodes whose
// person is missing, and persons whose API key is missing. The result is
// nil or an errors.Join of *diagramkit.ReferenceError values.
func (s *Store) CheckIntegrity() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for _, h := range s.handles.values() {
		if !s.nodes.has(h.NodeID) {
			errs = append(errs, &diagramkit.ReferenceError{
				From: "handle " + string(h.ID), To: string(h.NodeID), Err: diagramkit.ErrNodeNotFound,
			})
		}
	}
	for _, a := range s.arrows.values() {
		for _, end := range []diagramkit.HandleID{a.Source, a.Target} {
			if s.handles.has(end) {
				continue
			}
			ref, err := diagramkit.ParseHandleID(end)
			if err != nil {
				errs = append(errs, fmt.Errorf("arrow %s: %w", a.ID, err))
				continue
			}
			if !s.nodes.has(ref.NodeID) {
				errs = append(errs, &diagramkit.ReferenceError{
					From: "arrow " + string(a.ID), To: string(ref.NodeID), Err: diagramkit.ErrNodeNotFound,
				})
				continue
			}
			errs = append(errs, &diagramkit.ReferenceError{
				From: "arrow " + string(a.ID), To: string(end), Err: diagramkit.ErrHandleNotFound,
			})
		}
	}
	for _, n := range s.nodes.values() {
		if pid := n.PersonID(); pid != "" && !s.persons.has(pid) {
			errs = append(errs, &diagramkit.ReferenceError{
				From: "node " + string(n.ID), To: string(pid), Err: diagramkit.ErrPersonNotFound,
			})
		}
	}
	for _, p := range s.persons.values() {
		if kid := p.LLMConfig.APIKeyID; kid != "" && !s.apiKeys.has(kid) {
			errs = append(errs, &diagramkit.ReferenceError{
				From: "person " + string(p.ID), To: string(kid), Err: diagramkit.ErrAPIKeyNotFound,
			})
		}
	}
	return errors.Join(errs...)
}
