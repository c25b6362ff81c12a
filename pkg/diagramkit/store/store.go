package store

import (
	"fmt"
	"sync"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// Store is the map form of a diagram: every element kind keyed by id, with
// O(1) lookups and insertion-ordered listings.
//
// Add methods overwrite an existing element with the same id, keeping the
// original position. Returned nodes and arrows are copies; mutating them
// does not change the store. Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	nodes    *orderedMap[diagramkit.NodeID, diagramkit.Node]
	handles  *orderedMap[diagramkit.HandleID, diagramkit.Handle]
	arrows   *orderedMap[diagramkit.ArrowID, diagramkit.Arrow]
	persons  *orderedMap[diagramkit.PersonID, diagramkit.Person]
	apiKeys  *orderedMap[diagramkit.APIKeyID, diagramkit.APIKey]
	metadata *diagramkit.Metadata
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:   newOrderedMap[diagramkit.NodeID, diagramkit.Node](),
		handles: newOrderedMap[diagramkit.HandleID, diagramkit.Handle](),
		arrows:  newOrderedMap[diagramkit.ArrowID, diagramkit.Arrow](),
		persons: newOrderedMap[diagramkit.PersonID, diagramkit.Person](),
		apiKeys: newOrderedMap[diagramkit.APIKeyID, diagramkit.APIKey](),
	}
}

// AddNode inserts or replaces a node.
func (s *Store) AddNode(n diagramkit.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes.set(n.ID, n.Clone())
}

// AddHandle inserts or replaces a handle.
func (s *Store) AddHandle(h diagramkit.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles.set(h.ID, h)
}

// AddArrow inserts or replaces an arrow without checking its endpoints.
// Use Connect to enforce the connection rule.
func (s *Store) AddArrow(a diagramkit.Arrow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrows.set(a.ID, cloneArrow(a))
}

// AddPerson inserts or replaces a person.
func (s *Store) AddPerson(p diagramkit.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons.set(p.ID, p)
}

// AddAPIKey inserts or replaces an API key.
func (s *Store) AddAPIKey(k diagramkit.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys.set(k.ID, k)
}

// SetMetadata replaces the diagram metadata. Nil clears it.
func (s *Store) SetMetadata(m *diagramkit.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == nil {
		s.metadata = nil
		return
	}
	cp := *m
	s.metadata = &cp
}

// Metadata returns a copy of the diagram metadata, or nil.
func (s *Store) Metadata() *diagramkit.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metadata == nil {
		return nil
	}
	cp := *s.metadata
	return &cp
}

// Clear removes every element and the metadata.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes.clear()
	s.handles.clear()
	s.arrows.clear()
	s.persons.clear()
	s.apiKeys.clear()
	s.metadata = nil
}

// Node returns the node with id.
func (s *Store) Node(id diagramkit.NodeID) (diagramkit.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes.get(id)
	if !ok {
		return diagramkit.Node{}, false
	}
	return n.Clone(), true
}

// Handle returns the handle with id.
func (s *Store) Handle(id diagramkit.HandleID) (diagramkit.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles.get(id)
}

// Arrow returns the arrow with id.
func (s *Store) Arrow(id diagramkit.ArrowID) (diagramkit.Arrow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.arrows.get(id)
	if !ok {
		return diagramkit.Arrow{}, false
	}
	return cloneArrow(a), true
}

// Person returns the person with id.
func (s *Store) Person(id diagramkit.PersonID) (diagramkit.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persons.get(id)
}

// APIKey returns the API key with id.
func (s *Store) APIKey(id diagramkit.APIKeyID) (diagramkit.APIKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKeys.get(id)
}

// Nodes returns all nodes in insertion order.
func (s *Store) Nodes() []diagramkit.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.nodes.values()
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

// Handles returns all handles in insertion order.
func (s *Store) Handles() []diagramkit.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles.values()
}

// Arrows returns all arrows in insertion order.
func (s *Store) Arrows() []diagramkit.Arrow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.arrows.values()
	for i := range out {
		out[i] = cloneArrow(out[i])
	}
	return out
}

// Persons returns all persons in insertion order.
func (s *Store) Persons() []diagramkit.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persons.values()
}

// APIKeys returns all API keys in insertion order.
func (s *Store) APIKeys() []diagramkit.APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKeys.values()
}

// Counts reports how many elements of each kind the store holds.
type Counts struct {
	Nodes, Handles, Arrows, Persons, APIKeys int
}

// Len returns the element counts.
func (s *Store) Len() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Nodes:   s.nodes.len(),
		Handles: s.handles.len(),
		Arrows:  s.arrows.len(),
		Persons: s.persons.len(),
		APIKeys: s.apiKeys.len(),
	}
}

// RemoveNode deletes a node, its handles, and every arrow touching those
// handles. Persons referenced by the node are kept. Reports whether the
// node existed.
func (s *Store) RemoveNode(id diagramkit.NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nodes.delete(id) {
		return false
	}

	removed := make(map[diagramkit.HandleID]bool)
	for _, h := range s.handles.values() {
		if h.NodeID == id {
			removed[h.ID] = true
			s.handles.delete(h.ID)
		}
	}
	for _, a := range s.arrows.values() {
		if removed[a.Source] || removed[a.Target] || ownedBy(a.Source, id) || ownedBy(a.Target, id) {
			s.arrows.delete(a.ID)
		}
	}
	return true
}

// ownedBy catches arrows whose endpoint handle was never materialized.
func ownedBy(h diagramkit.HandleID, node diagramkit.NodeID) bool {
	ref, err := diagramkit.ParseHandleID(h)
	return err == nil && ref.NodeID == node
}

// RemoveArrow deletes an arrow. Reports whether it existed.
func (s *Store) RemoveArrow(id diagramkit.ArrowID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arrows.delete(id)
}

// RemovePerson deletes a person. Nodes that reference it keep their
// personId and will report ErrPersonNotFound from CheckIntegrity.
func (s *Store) RemovePerson(id diagramkit.PersonID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persons.delete(id)
}

// RemoveAPIKey deletes an API key. Persons that reference it keep the id.
func (s *Store) RemoveAPIKey(id diagramkit.APIKeyID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKeys.delete(id)
}

// Connect adds an arrow from source to target after checking that both
// handles exist and AreHandlesCompatible admits the pair.
func (s *Store) Connect(id diagramkit.ArrowID, source, target diagramkit.HandleID) (diagramkit.Arrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.handles.get(source)
	if !ok {
		return diagramkit.Arrow{}, &diagramkit.ReferenceError{From: "arrow " + string(id), To: string(source), Err: diagramkit.ErrHandleNotFound}
	}
	dst, ok := s.handles.get(target)
	if !ok {
		return diagramkit.Arrow{}, &diagramkit.ReferenceError{From: "arrow " + string(id), To: string(target), Err: diagramkit.ErrHandleNotFound}
	}
	if !diagramkit.AreHandlesCompatible(src, dst) {
		return diagramkit.Arrow{}, fmt.Errorf("%w: %s (%s %s) -> %s (%s %s)", diagramkit.ErrIncompatibleHandles,
			src.ID, src.Direction, src.DataType, dst.ID, dst.Direction, dst.DataType)
	}

	a := diagramkit.Arrow{ID: id, Source: source, Target: target}
	s.arrows.set(id, a)
	return a, nil
}

func cloneArrow(a diagramkit.Arrow) diagramkit.Arrow {
	a.Data = diagramkit.CloneData(a.Data)
	if a.Branch != nil {
		b := *a.Branch
		a.Branch = &b
	}
	return a
}
