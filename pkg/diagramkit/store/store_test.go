package store_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/store"
)

func ptr[T any](v T) *T { return &v }

// sampleDiagram is start -> ask (person p1 with key k1) -> end.
func sampleDiagram() diagramkit.Diagram {
	return diagramkit.Diagram{
		Nodes: []diagramkit.Node{
			{ID: "start-1", Type: diagramkit.KindStart, Position: diagramkit.Vec2{X: 0, Y: 0}, Data: map[string]any{"label": "Start"}},
			{ID: "ask-1", Type: diagramkit.KindPersonJob, Position: diagramkit.Vec2{X: 250, Y: 0}, Data: map[string]any{"label": "Ask", "personId": "p1"}},
			{ID: "end-1", Type: diagramkit.KindEndpoint, Position: diagramkit.Vec2{X: 500, Y: 0}, Data: map[string]any{"label": "End"}},
		},
		Handles: []diagramkit.Handle{
			diagramkit.NewHandle("start-1", "default", diagramkit.Output, diagramkit.TypeAny),
			diagramkit.NewHandle("ask-1", "default", diagramkit.Input, diagramkit.TypeAny),
			diagramkit.NewHandle("ask-1", "default", diagramkit.Output, diagramkit.TypeString),
			diagramkit.NewHandle("end-1", "default", diagramkit.Input, diagramkit.TypeAny),
		},
		Arrows: []diagramkit.Arrow{
			{ID: "a1", Source: "start-1:default:output", Target: "ask-1:default:input"},
			{ID: "a2", Source: "ask-1:default:output", Target: "end-1:default:input", Branch: ptr(true)},
		},
		Persons: []diagramkit.Person{
			{ID: "p1", Label: "Bot", LLMConfig: diagramkit.LLMConfig{Service: "openai", Model: "gpt-4", APIKeyID: "APIKEY_K1"}},
		},
		APIKeys: []diagramkit.APIKey{
			{ID: "APIKEY_K1", Label: "main", Service: "openai", MaskedKey: "sk-********abcd"},
		},
	}
}

func TestFromDiagram_RoundTrip(t *testing.T) {
	d := sampleDiagram()

	s, err := store.FromDiagram(d)
	require.NoError(t, err)
	back := s.Diagram()

	assert.ElementsMatch(t, d.Nodes, back.Nodes)
	assert.ElementsMatch(t, d.Handles, back.Handles)
	assert.ElementsMatch(t, d.Arrows, back.Arrows)
	assert.ElementsMatch(t, d.Persons, back.Persons)
	assert.ElementsMatch(t, d.APIKeys, back.APIKeys)
	assert.NoError(t, s.CheckIntegrity())
}

func TestFromDiagram_PreservesInsertionOrder(t *testing.T) {
	d := sampleDiagram()
	s, err := store.FromDiagram(d)
	require.NoError(t, err)

	var ids []diagramkit.NodeID
	for _, n := range s.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []diagramkit.NodeID{"start-1", "ask-1", "end-1"}, ids)
}

func TestFromDiagram_DuplicatePolicy(t *testing.T) {
	d := sampleDiagram()
	d.Nodes = append(d.Nodes, diagramkit.Node{ID: "start-1", Type: diagramkit.KindStart, Data: map[string]any{"label": "Again"}})

	t.Run("overwrite keeps last value at first position", func(t *testing.T) {
		s, err := store.FromDiagram(d)
		require.NoError(t, err)

		nodes := s.Nodes()
		require.Len(t, nodes, 3)
		assert.Equal(t, diagramkit.NodeID("start-1"), nodes[0].ID)
		assert.Equal(t, "Again", nodes[0].Label())
	})

	t.Run("reject", func(t *testing.T) {
		_, err := store.FromDiagram(d, store.WithDuplicatePolicy(store.Reject))
		require.Error(t, err)
		assert.ErrorIs(t, err, diagramkit.ErrDuplicateID)

		var dup *diagramkit.DuplicateIDError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "node", dup.Kind)
		assert.Equal(t, "start-1", dup.ID)
	})

	t.Run("reject passes on unique ids", func(t *testing.T) {
		_, err := store.FromDiagram(sampleDiagram(), store.WithDuplicatePolicy(store.Reject))
		assert.NoError(t, err)
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := store.ParseDuplicatePolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, store.Reject, p)
	assert.Equal(t, "reject", p.String())

	p, err = store.ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, store.Overwrite, p)

	_, err = store.ParseDuplicatePolicy("merge")
	assert.Error(t, err)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s, err := store.FromDiagram(sampleDiagram())
	require.NoError(t, err)

	n, ok := s.Node("start-1")
	require.True(t, ok)
	n.Data["label"] = "mutated"

	again, _ := s.Node("start-1")
	assert.Equal(t, "Start", again.Label())
}

func TestStore_RemoveNode(t *testing.T) {
	s, err := store.FromDiagram(sampleDiagram())
	require.NoError(t, err)

	assert.True(t, s.RemoveNode("ask-1"))
	assert.False(t, s.RemoveNode("ask-1"))

	counts := s.Len()
	assert.Equal(t, 2, counts.Nodes)
	assert.Equal(t, 2, counts.Handles)
	assert.Equal(t, 0, counts.Arrows, "both arrows touched ask-1")
	assert.Equal(t, 1, counts.Persons, "persons are not cascaded")
	assert.NoError(t, s.CheckIntegrity())
}

func TestStore_RemovePersonLeavesDanglingReference(t *testing.T) {
	s, err := store.FromDiagram(sampleDiagram())
	require.NoError(t, err)

	require.True(t, s.RemovePerson("p1"))
	n, ok := s.Node("ask-1")
	require.True(t, ok)
	assert.Equal(t, diagramkit.PersonID("p1"), n.PersonID())

	err = s.CheckIntegrity()
	require.Error(t, err)
	assert.ErrorIs(t, err, diagramkit.ErrPersonNotFound)
}

func TestStore_Connect(t *testing.T) {
	tests := []struct {
		name    string
		source  diagramkit.HandleID
		target  diagramkit.HandleID
		wantErr error
	}{
		{"output to input", "start-1:default:output", "end-1:default:input", nil},
		{"string to any", "ask-1:default:output", "end-1:default:input", nil},
		{"input as source", "ask-1:default:input", "end-1:default:input", diagramkit.ErrIncompatibleHandles},
		{"missing handle", "start-1:nope:output", "end-1:default:input", diagramkit.ErrHandleNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := store.FromDiagram(sampleDiagram())
			require.NoError(t, err)

			a, err := s.Connect("new", tt.source, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, ok := s.Arrow("new")
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, a.Source)
			got, ok := s.Arrow("new")
			require.True(t, ok)
			assert.Equal(t, a, got)
		})
	}
}

func TestStore_CheckIntegrity(t *testing.T) {
	d := sampleDiagram()
	d.Handles = append(d.Handles, diagramkit.NewHandle("ghost", "default", diagramkit.Input, diagramkit.TypeAny))
	d.Arrows = append(d.Arrows,
		diagramkit.Arrow{ID: "a3", Source: "start-1:missing:output", Target: "end-1:default:input"},
		diagramkit.Arrow{ID: "a4", Source: "start-1:default:output", Target: "nowhere:default:input"},
	)
	d.Persons[0].LLMConfig.APIKeyID = "APIKEY_GONE"

	s, err := store.FromDiagram(d)
	require.NoError(t, err)

	err = s.CheckIntegrity()
	require.Error(t, err)
	assert.ErrorIs(t, err, diagramkit.ErrNodeNotFound)
	assert.ErrorIs(t, err, diagramkit.ErrHandleNotFound)
	assert.ErrorIs(t, err, diagramkit.ErrAPIKeyNotFound)
	assert.Contains(t, err.Error(), "a3")
	assert.Contains(t, err.Error(), "a4")
}

func TestStore_ClearAndMetadata(t *testing.T) {
	d := sampleDiagram()
	d.Metadata = &diagramkit.Metadata{Name: "demo"}

	s, err := store.FromDiagram(d)
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Metadata().Name)

	s.Clear()
	assert.Equal(t, store.Counts{}, s.Len())
	assert.Nil(t, s.Metadata())
	assert.Empty(t, s.Diagram().Nodes)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := store.New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := diagramkit.NodeID(string(rune('a' + i%26)))
			s.AddNode(diagramkit.Node{ID: id, Type: diagramkit.KindJob})
			s.Nodes()
			s.Node(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, s.Len().Nodes)
}
