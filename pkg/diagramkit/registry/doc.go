// Package registry provides a generic thread-safe registry keyed by an
// ordered type.
//
// It backs the node catalog (keyed by node kind), the format converter
// registry (keyed by format name) and the execution monitor (keyed by
// execution id):
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//	v, ok := r.Get("one")
//
// Keys, Values and Range always walk entries in ascending key order.
package registry
