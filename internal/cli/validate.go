package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errInvalid is returned when validate finds problems, after they are printed.
var errInvalid = errors.New("diagram is invalid")

func (c *CLI) validateCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a diagram without converting it",
		Long: `Validate runs the structural checks of the readable format, or loads any
other format and reports dangling references between nodes, handles, arrows,
persons and API keys. It exits non-zero when problems are found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			reg, err := c.registry(nil)
			if err != nil {
				return err
			}

			v, err := reg.Validate(cmd.Context(), data, from)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			if v.Valid {
				fmt.Fprintf(out, "%s: valid %s diagram\n", args[0], v.Format)
				return nil
			}
			for _, e := range v.Errors {
				fmt.Fprintf(out, "%s: %s\n", args[0], e)
			}
			return errInvalid
		},
	}

	cmd.Flags().StringVar(&from, "format", "", "document format (default: detect)")
	return cmd
}
