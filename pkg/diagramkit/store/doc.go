// Package store holds the map form of a diagram.
//
// FromDiagram and (*Store).Diagram convert between the array form used on
// the wire and the keyed form used for editing:
//
//	s, err := store.FromDiagram(d, store.WithDuplicatePolicy(store.Reject))
//	n, ok := s.Node("start-1")
//	back := s.Diagram() // same elements as d, in insertion order
//
// A Store also satisfies labels.Target, so an import can write straight
// into it.
package store
