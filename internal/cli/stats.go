package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"task-notifications/internal/tui"
)

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show total and unread counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			counts := s.Stats()
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(counts)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStats(counts, s.Connected()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
