package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"task-notifications/internal/notifstore"
	"task-notifications/internal/tui"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	var (
		page    int
		unread  bool
		grouped bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Notifications(cmd.Context(), notifstore.Query{Page: page, OnlyUnread: unread})
			if err != nil {
				return fmt.Errorf("listing notifications: %w", err)
			}
			now := time.Now()
			out := cmd.OutOrStdout()
			fmt.Fprint(out, tui.RenderStats(s.Stats(), s.Connected()))
			if grouped {
				fmt.Fprint(out, tui.RenderGroups(notifstore.GroupByDate(p.Items, now), now))
				return nil
			}
			fmt.Fprint(out, tui.RenderPage(p, now))
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "show pages 1..N")
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	cmd.Flags().BoolVarP(&grouped, "group", "g", false, "group by Today/Yesterday/Earlier")
	return cmd
}
