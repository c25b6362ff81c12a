package store

// orderedMap is a map that remembers first-insertion order.
// Overwriting a key keeps its original position. Not safe for concurrent
// use; Store guards it.
type orderedMap[K comparable, V any] struct {
	keys []K
	vals map[K]V
}

func newOrderedMap[K comparable, V any]() *orderedMap[K, V] {
	return &orderedMap[K, V]{vals: make(map[K]V)}
}

func (m *orderedMap[K, V]) set(k K, v V) {
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

func (m *orderedMap[K, V]) get(k K) (V, bool) {
	v, ok := m.vals[k]
	return v, ok
}

func (m *orderedMap[K, V]) has(k K) bool {
	_, ok := m.vals[k]
	return ok
}

func (m *orderedMap[K, V]) delete(k K) bool {
	if _, ok := m.vals[k]; !ok {
		return false
	}
	delete(m.vals, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

func (m *orderedMap[K, V]) len() int {
	return len(m.keys)
}

// values returns the values in insertion order.
func (m *orderedMap[K, V]) values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.vals[k])
	}
	return out
}

func (m *orderedMap[K, V]) clear() {
	m.keys = nil
	m.vals = make(map[K]V)
}
