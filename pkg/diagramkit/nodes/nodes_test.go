package nodes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
)

func TestCatalog_BuiltinKinds(t *testing.T) {
	cat := nodes.NewCatalog()

	for _, kind := range diagramkit.AllKinds {
		spec, ok := cat.Spec(kind)
		require.True(t, ok, "missing spec for %s", kind)
		assert.Equal(t, kind, spec.Kind)
		assert.NotEmpty(t, spec.DisplayName)
		assert.NotEmpty(t, spec.Handles)
	}
	assert.Len(t, cat.Kinds(), len(diagramkit.AllKinds))
}

func TestCatalog_DefaultHandles(t *testing.T) {
	cat := nodes.NewCatalog()

	tests := []struct {
		name string
		kind diagramkit.NodeKind
		want []diagramkit.HandleID
	}{
		{"start", diagramkit.KindStart, []diagramkit.HandleID{"n1:default:output"}},
		{"person job", diagramkit.KindPersonJob, []diagramkit.HandleID{
			"n1:first:input", "n1:default:input", "n1:default:output",
		}},
		{"condition", diagramkit.KindCondition, []diagramkit.HandleID{
			"n1:default:input", "n1:true:output", "n1:false:output",
		}},
		{"endpoint", diagramkit.KindEndpoint, []diagramkit.HandleID{"n1:default:input"}},
		{"unknown kind", "legacy", []diagramkit.HandleID{"n1:default:input", "n1:default:output"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handles := cat.DefaultHandles("n1", tt.kind)
			ids := make([]diagramkit.HandleID, len(handles))
			for i, h := range handles {
				ids[i] = h.ID
				assert.Equal(t, diagramkit.NodeID("n1"), h.NodeID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCatalog_ConditionOutputsAreBoolean(t *testing.T) {
	cat := nodes.NewCatalog()
	handles := cat.DefaultHandles("c", diagramkit.KindCondition)

	for _, h := range handles {
		if h.Direction == diagramkit.Output {
			assert.Equal(t, diagramkit.TypeBoolean, h.DataType, h.Label)
		}
	}
}

func TestCatalog_Register(t *testing.T) {
	cat := nodes.NewCatalog()

	err := cat.Register(nodes.Spec{Kind: "webhook", DisplayName: "Webhook",
		Handles: []nodes.HandleSpec{{Label: "event", Direction: diagramkit.Output, DataType: diagramkit.TypeObject}}})
	require.NoError(t, err)

	handles := cat.DefaultHandles("w", "webhook")
	require.Len(t, handles, 1)
	assert.Equal(t, diagramkit.HandleID("w:event:output"), handles[0].ID)

	assert.Error(t, cat.Register(nodes.Spec{}))
}

func TestCatalog_MissingFields(t *testing.T) {
	cat := nodes.NewCatalog()

	tests := []struct {
		name string
		node diagramkit.Node
		want []string
	}{
		{
			"complete person job",
			diagramkit.Node{Type: diagramkit.KindPersonJob, Data: map[string]any{"personId": "p1", "defaultPrompt": "hi"}},
			nil,
		},
		{
			"person job without person",
			diagramkit.Node{Type: diagramkit.KindPersonJob, Data: map[string]any{"defaultPrompt": "hi"}},
			[]string{"personId"},
		},
		{
			"expression condition without expression",
			diagramkit.Node{Type: diagramkit.KindCondition, Data: map[string]any{"conditionType": "expression"}},
			[]string{"expression"},
		},
		{
			"endpoint saving without path",
			diagramkit.Node{Type: diagramkit.KindEndpoint, Data: map[string]any{"saveToFile": true}},
			[]string{"filePath"},
		},
		{
			"start has no requirements",
			diagramkit.Node{Type: diagramkit.KindStart},
			nil,
		},
		{
			"unknown kind",
			diagramkit.Node{Type: "legacy"},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cat.MissingFields(tt.node))
		})
	}
}

func TestCatalog_PromptFields(t *testing.T) {
	cat := nodes.NewCatalog()
	assert.Equal(t, []string{"firstOnlyPrompt", "defaultPrompt"}, cat.PromptFields(diagramkit.KindPersonJob))
	assert.Nil(t, cat.PromptFields(diagramkit.KindStart))
	assert.Nil(t, cat.PromptFields("legacy"))
}

func TestDecode(t *testing.T) {
	t.Run("person job defaults", func(t *testing.T) {
		props, err := nodes.Decode(diagramkit.KindPersonJob, map[string]any{
			"label":         "Ask",
			"personId":      "p1",
			"defaultPrompt": "Hello {{name}}",
		})
		require.NoError(t, err)

		p, ok := props.(*nodes.PersonJobProps)
		require.True(t, ok)
		assert.Equal(t, "Ask", p.Label)
		assert.Equal(t, diagramkit.PersonID("p1"), p.PersonID)
		assert.Equal(t, 1, p.MaxIteration)
		assert.Equal(t, diagramkit.KindPersonJob, p.Kind())
	})

	t.Run("json numbers", func(t *testing.T) {
		props, err := nodes.Decode(diagramkit.KindUserResponse, map[string]any{"timeout": float64(30)})
		require.NoError(t, err)
		assert.Equal(t, 30, props.(*nodes.UserResponseProps).Timeout)
	})

	t.Run("every builtin kind decodes", func(t *testing.T) {
		for _, kind := range diagramkit.AllKinds {
			props, err := nodes.Decode(kind, nil)
			require.NoError(t, err, kind)
			assert.Equal(t, kind, props.Kind())
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := nodes.Decode("legacy", nil)
		assert.ErrorIs(t, err, diagramkit.ErrUnknownNodeKind)
	})
}

func TestEncodeDecode(t *testing.T) {
	props := []nodes.Properties{
		&nodes.StartProps{Label: "Start", CustomData: map[string]any{"k": "v"}},
		&nodes.PersonJobProps{Label: "Ask", PersonID: "p1", FirstOnlyPrompt: "a", DefaultPrompt: "b", MaxIteration: 3, ForgettingMode: "on_every_turn"},
		&nodes.PersonBatchJobProps{Label: "Batch", PersonID: "p1", Prompt: "x", ParallelExecution: false, AggregateResults: true},
		&nodes.ConditionProps{Label: "Check", ConditionType: "expression", Expression: "x > 1"},
		&nodes.JobProps{Label: "Run", Language: "python", Code: "print(1)", Timeout: 5},
		&nodes.EndpointProps{Label: "End", SaveToFile: true, FilePath: "out.txt", FileFormat: "text"},
		&nodes.DBProps{Label: "Load", SubType: "file", Operation: "read", SourceDetails: "in.txt"},
		&nodes.UserResponseProps{Label: "Ask user", Prompt: "ok?", Timeout: 60},
		&nodes.NotionProps{Label: "Page", Operation: "read_page", PageID: "abc"},
	}

	for _, p := range props {
		t.Run(string(p.Kind()), func(t *testing.T) {
			got, err := nodes.Decode(p.Kind(), nodes.Encode(p))
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}
