package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
)

func formatNames() []string {
	return format.NewRegistry().Formats()
}

func (c *CLI) detectCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Report the format of a diagram file",
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

			scores := reg.Scores(data)
			if len(scores) == 0 {
				return fmt.Errorf("%s: %w", args[0], format.ErrUndetectable)
			}
			out := cmd.OutOrStdout()
			if !all {
				fmt.Fprintln(out, scores[0].Format)
				return nil
			}
			for _, s := range scores {
				fmt.Fprintf(out, "%-10s %.2f\n", s.Format, s.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every candidate format with its confidence")
	return cmd
}
