package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type convertOpts struct {
	from   string
	to     string
	output string
}

func (c *CLI) convertCommand() *cobra.Command {
	opts := convertOpts{}

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a diagram to another format",
		Long: `Convert reads a diagram in any supported format and writes it in the format given by --to.

The source format is detected unless --from is set. Use "-" to read standard input.`,
		Example: `  diagramctl convert flow.json --to light -o flow.yaml
  cat flow.yaml | diagramctl convert - --to llm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "source format (default: detect)")
	cmd.Flags().StringVarP(&opts.to, "to", "t", "", "target format: "+strings.Join(formatNames(), ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (c *CLI) runConvert(cmd *cobra.Command, input string, opts convertOpts) error {
	data, err := readInput(cmd, input)
	if err != nil {
		return err
	}
	reg, err := c.registry(nil)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	out, err := reg.Convert(cmd.Context(), data, opts.from, opts.to)
	if err != nil {
		return fmt.Errorf("convert %s: %w", input, err)
	}
	if err := writeOutput(cmd, opts.output, out); err != nil {
		return err
	}
	if opts.output != "" && opts.output != "-" {
		prog.done(fmt.Sprintf("Wrote %s", opts.output))
	}
	return nil
}
