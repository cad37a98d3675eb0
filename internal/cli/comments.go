package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"task-notifications/internal/restclient"
	"task-notifications/internal/tui"
)

func newCommentsCmd(flags *globalFlags) *cobra.Command {
	var (
		post     string
		mentions []string
		follow   bool
	)
	cmd := &cobra.Command{
		Use:   "comments <task-id>",
		Short: "Show a task's comment thread, post to it or follow it live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			out := cmd.OutOrStdout()

			dir, err := loadDirectory(ctx, s.API())
			if err != nil {
				return err
			}

			if post != "" {
				ids, err := resolveMentions(ctx, s.API(), mentions)
				if err != nil {
					return err
				}
				c, err := s.API().PostComment(ctx, taskID, post, ids)
				if err != nil {
					return fmt.Errorf("posting comment: %w", err)
				}
				fmt.Fprint(out, tui.RenderComment(c, dir.name(c.AuthorID)))
				if !follow {
					return nil
				}
			}

			// Join before fetching history so nothing posted in between is lost;
			// the seen set drops the overlap.
			sub := s.WatchComments(taskID)
			defer sub.Close()

			history, err := s.API().FetchComments(ctx, taskID)
			if err != nil {
				return fmt.Errorf("fetching comments: %w", err)
			}
			seen := make(map[string]bool, len(history))
			for _, c := range history {
				seen[c.ID] = true
				fmt.Fprint(out, tui.RenderComment(c, dir.name(c.AuthorID)))
			}
			if !follow {
				return nil
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case c, ok := <-sub.Comments():
					if !ok {
						return nil
					}
					if seen[c.ID] {
						continue
					}
					seen[c.ID] = true
					fmt.Fprint(out, tui.RenderComment(c, dir.name(c.AuthorID)))
				}
			}
		},
	}
	cmd.Flags().StringVar(&post, "post", "", "post a comment")
	cmd.Flags().StringSliceVar(&mentions, "mention", nil, "usernames to mention in the posted comment")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming new comments")
	return cmd
}

// directory maps user ids to usernames for display.
type directory map[string]string

func loadDirectory(ctx context.Context, api *restclient.Client) (directory, error) {
	users, err := api.FetchUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching users: %w", err)
	}
	d := make(directory, len(users))
	for _, u := range users {
		d[u.ID] = u.Username
	}
	return d, nil
}

func (d directory) name(id string) string { return d[id] }

// resolveMentions turns usernames, with or without a leading @, into user
// ids. Any unknown username fails the whole lookup.
func resolveMentions(ctx context.Context, api *restclient.Client, usernames []string) ([]string, error) {
	var names []string
	for _, name := range usernames {
		if name = strings.TrimPrefix(strings.TrimSpace(name), "@"); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	users, err := api.FetchUsers(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("resolving mentions: %w", err)
	}
	found := make(map[string]string, len(users))
	for _, u := range users {
		found[u.Username] = u.ID
	}
	var ids, unknown []string
	for _, name := range names {
		id, ok := found[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		ids = append(ids, id)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown users: %s", strings.Join(unknown, ", "))
	}
	return slices.Compact(slices.Sorted(slices.Values(ids))), nil
}
