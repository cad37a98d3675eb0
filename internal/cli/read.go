package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"task-notifications/internal/models"
	"task-notifications/internal/notifstore"
	"task-notifications/internal/session"
	"task-notifications/internal/tui"
)

// maxScanPages bounds how far read looks for an id it has not seen.
const maxScanPages = 50

// locate pages through the list until id is cached.
func locate(ctx context.Context, s *session.Session, id string) error {
	q := notifstore.Query{Page: 1}
	for q.Page <= maxScanPages {
		p, err := s.Notifications(ctx, q)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(p.Items, func(n models.Notification) bool { return n.ID == id }) {
			return nil
		}
		if !p.HasMore {
			break
		}
		q.Page++
	}
	return fmt.Errorf("notification %s not found", id)
}

func newReadCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range args {
				if err := locate(ctx, s, id); err != nil {
					return err
				}
				if err := s.MarkAsRead(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, s.ReadState(id))
			}
			if err := s.Resync(ctx); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStats(s.Stats(), s.Connected()))
			return nil
		},
	}
}

func newReadAllCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.Notifications(ctx, notifstore.Query{Page: 1}); err != nil {
				return err
			}
			if err := s.MarkAllAsRead(ctx); err != nil {
				return err
			}
			if err := s.Resync(ctx); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStats(s.Stats(), s.Connected()))
			return nil
		},
	}
}
