package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/template"
)

func (c *CLI) varsCommand() *cobra.Command {
	var (
		from    string
		names   bool
		sets    []string
		missing string
	)

	cmd := &cobra.Command{
		Use:   "vars <file>",
		Short: "List the {{variables}} used by prompts, or render them with --set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			reg, err := c.registry(nil)
			if err != nil {
				return err
			}
			d, used, err := reg.Load(cmd.Context(), data, from)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			c.Logger.Debug("loaded diagram", "format", used, "nodes", len(d.Nodes))

			out := cmd.OutOrStdout()
			if len(sets) > 0 || cmd.Flags().Changed("missing") {
				action, err := parseMissingAction(missing)
				if err != nil {
					return err
				}
				vars, err := parseSets(sets)
				if err != nil {
					return err
				}
				exp := template.NewExpander(template.WithMissingAction(action))
				_, rendered, err := format.RenderPrompts(d, vars, exp, nil)
				if err != nil {
					return err
				}
				for _, p := range rendered {
					label := p.Label
					if label == "" {
						label = string(p.NodeID)
					}
					fmt.Fprintf(out, "%s.%s: %s\n", label, p.Field, p.Text)
				}
				return nil
			}

			scan := format.ScanVariables(d, nil)
			if names {
				for _, name := range format.AllVariables(scan) {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			for _, v := range scan {
				label := v.Label
				if label == "" {
					label = string(v.NodeID)
				}
				fmt.Fprintf(out, "%s: %s\n", label, strings.Join(v.Names, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "format", "", "document format (default: detect)")
	cmd.Flags().BoolVar(&names, "names", false, "print only the sorted variable names")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "render prompts with `key=value` (repeatable, dotted keys nest)")
	cmd.Flags().StringVar(&missing, "missing", "keep", "undefined variables when rendering: keep, empty or error")
	return cmd
}

func parseMissingAction(s string) (template.MissingAction, error) {
	switch strings.ToLower(s) {
	case "", "keep":
		return template.MissingKeep, nil
	case "empty":
		return template.MissingEmpty, nil
	case "error":
		return template.MissingError, nil
	default:
		return 0, fmt.Errorf("unknown --missing value %q (want keep, empty or error)", s)
	}
}

// parseSets turns key=value pairs into a variable map. "user.name=Ada"
// becomes {"user": {"name": "Ada"}}.
func parseSets(sets []string) (map[string]any, error) {
	vars := make(map[string]any)
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", kv)
		}
		parts := strings.Split(key, ".")
		m := vars
		for _, part := range parts[:len(parts)-1] {
			next, ok := m[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[part] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = value
	}
	return vars, nil
}
