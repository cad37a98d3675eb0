package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"task-notifications/internal/notifstore"
	"task-notifications/internal/tui"
)

// watchFallback redraws even without a change signal so periodic counter
// resyncs and the date grouping stay current.
const watchFallback = 30 * time.Second

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var showCounters bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow notifications and counters live until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.Notifications(ctx, notifstore.Query{Page: 1}); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			now := time.Now()
			fmt.Fprint(out, tui.RenderStats(s.Stats(), s.Connected()))
			fmt.Fprint(out, tui.RenderGroups(s.Groups(now), now))

			seen := make(map[string]bool)
			for _, items := range s.Groups(now) {
				for _, n := range items {
					seen[n.ID] = true
				}
			}
			lastCounts, lastConnected := s.Stats(), s.Connected()

			ticker := time.NewTicker(watchFallback)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					if showCounters {
						fmt.Fprint(out, tui.RenderCounters(s.DispatchCounters()))
					}
					return nil
				case <-s.Changes():
				case <-ticker.C:
				}

				now := time.Now()
				for _, items := range s.Groups(now) {
					// Groups are newest first; print arrivals oldest first.
					for i := len(items) - 1; i >= 0; i-- {
						if n := items[i]; !seen[n.ID] {
							seen[n.ID] = true
							fmt.Fprint(out, tui.RenderNotification(n, now))
						}
					}
				}
				counts, connected := s.Stats(), s.Connected()
				if counts != lastCounts || connected != lastConnected {
					fmt.Fprint(out, tui.RenderStats(counts, connected))
					lastCounts, lastConnected = counts, connected
				}
			}
		},
	}
	cmd.Flags().BoolVar(&showCounters, "counters", false, "print inbound frame counters on exit")
	return cmd
}
