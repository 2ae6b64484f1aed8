package cmd

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"capsentry/internal/tui"
)

func newViewCmd(a *app) *cobra.Command {
	var timeout time.Duration

	viewCmd := &cobra.Command{
		Use:   "view <capture>",
		Short: "Analyze a capture file and browse the results interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := analyzeFile(cmd.Context(), args[0], timeout)
			if err != nil {
				return err
			}

			if err := tui.Run(result, args[0], uuid.NewString(), cmd.OutOrStdout()); err != nil {
				return err
			}
			return partialErr(result)
		},
	}

	viewCmd.Flags().DurationVar(&timeout, "timeout", 0, "stop the analysis after this long (0 disables)")

	return viewCmd
}
