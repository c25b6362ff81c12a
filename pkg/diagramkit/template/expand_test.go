package template_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/template"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"none", "plain text", nil},
		{"single", "Hello {{name}}", []string{"name"}},
		{"spaces", "Hello {{ name }}", []string{"name"}},
		{"ordered and deduplicated", "{{b}} {{a}} {{b}}", []string{"b", "a"}},
		{"dotted", "{{user.name}}", []string{"user.name"}},
		{"malformed ignored", "{{1bad}} {single} {{ }} {{ok}}", []string{"ok"}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, template.Placeholders(tt.input))
		})
	}
}

func TestExpand(t *testing.T) {
	vars := map[string]any{
		"name":  "World",
		"count": 3,
		"user":  map[string]any{"name": "Ada"},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Hello {{name}}", "Hello World"},
		{"spaces", "Hello {{ name }}", "Hello World"},
		{"number", "{{count}} items", "3 items"},
		{"nested", "Hi {{user.name}}", "Hi Ada"},
		{"missing kept", "Hi {{nobody}}", "Hi {{nobody}}"},
		{"empty", "", ""},
	}

	exp := template.NewExpander()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exp.Expand(tt.input, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpander_MissingActions(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		exp := template.NewExpander(template.WithMissingAction(template.MissingEmpty))
		got, err := exp.Expand("a{{x}}b", nil)
		require.NoError(t, err)
		assert.Equal(t, "ab", got)
	})

	t.Run("error", func(t *testing.T) {
		exp := template.NewExpander(template.WithMissingAction(template.MissingError))
		got, err := exp.Expand("{{x}} and {{y}}", map[string]any{"y": 1})
		require.Error(t, err)
		assert.Equal(t, "{{x}} and 1", got)

		var undef *template.UndefinedVariableError
		require.True(t, errors.As(err, &undef))
		assert.Equal(t, []string{"x"}, undef.Names)
		assert.Equal(t, "undefined variable: x", err.Error())
	})

	t.Run("error lists all", func(t *testing.T) {
		exp := template.NewExpander(template.WithMissingAction(template.MissingError))
		_, err := exp.Expand("{{a}}{{b}}", nil)
		assert.EqualError(t, err, "undefined variables: a, b")
	})
}

func TestExpander_ExpandMap(t *testing.T) {
	exp := template.NewExpander()
	in := map[string]any{
		"prompt": "Hi {{name}}",
		"nested": map[string]any{"text": "{{name}}!"},
		"n":      1,
	}

	out, err := exp.ExpandMap(in, map[string]any{"name": "Bo"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Bo", out["prompt"])
	assert.Equal(t, "Bo!", out["nested"].(map[string]any)["text"])
	assert.Equal(t, 1, out["n"])
	assert.Equal(t, "Hi {{name}}", in["prompt"], "input untouched")

	out, err = exp.ExpandMap(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestExpander_Concurrent(t *testing.T) {
	exp := template.NewExpander()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := exp.Expand("{{v}}", map[string]any{"v": "x"})
			assert.NoError(t, err)
			assert.Equal(t, "x", got)
		}()
	}
	wg.Wait()
}
