/*
Package template finds and fills {{var}} placeholders in prompt text.

# Detection

Placeholders lists the variables a prompt uses, for UI hints and the
"vars" CLI command:

	template.Placeholders("Summarize {{doc}} for {{ user.name }}")
	// []string{"doc", "user.name"}

Detection is advisory. Text like "{{ 1bad }}" or "{single}" is not a
placeholder and is left alone.

# Expansion

Expansion backs "vars --set" and format.RenderPrompts:

	exp := template.NewExpander()
	result, _ := exp.Expand("Hello {{name}}", map[string]any{"name": "World"})
	// result: "Hello World"

Dotted names walk nested maps:

	exp.Expand("{{user.name}}", map[string]any{
	    "user": map[string]any{"name": "Ada"},
	})
	// "Ada"

Missing variables are kept by default. WithMissingAction changes that:

	exp := template.NewExpander(template.WithMissingAction(template.MissingEmpty))
	result, _ := exp.Expand("Hello {{missing}}", nil)
	// result: "Hello "

# Thread Safety

Expander is safe for concurrent use after construction.
*/
package template
