package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// MemoryStore keeps encoded diagrams in memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	opts   options
	data   map[diagramkit.DiagramID]storedDiagram
	closed bool
}

type storedDiagram struct {
	data     []byte
	name     string
	modified time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts: buildOptions(opts),
		data: make(map[diagramkit.DiagramID]storedDiagram),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, id diagramkit.DiagramID, d diagramkit.Diagram) error {
	data, name, err := m.opts.encode(id, d)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.data[id] = storedDiagram{data: data, name: name, modified: time.Now().UTC()}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id diagramkit.DiagramID) (diagramkit.Diagram, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return diagramkit.Diagram{}, ErrStoreClosed
	}
	stored, ok := m.data[id]
	m.mu.RUnlock()

	if !ok {
		return diagramkit.Diagram{}, ErrNotFound
	}
	// The payload is never mutated after Save, decoding gives the caller a
	// private copy.
	return m.opts.decode(id, stored.data)
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data))
	for id, s := range m.data {
		infos = append(infos, Info{
			ID:       id,
			Name:     s.name,
			Modified: s.modified,
			Size:     int64(len(s.data)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id diagramkit.DiagramID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, id)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored diagrams.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
