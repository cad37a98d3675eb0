// Package tui renders notifyctl output with lipgloss.
package tui

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"task-notifications/internal/dispatch"
	"task-notifications/internal/models"
	"task-notifications/internal/notifstore"
	"task-notifications/internal/stats"
)

var (
	accent  = lipgloss.Color("#2563EB")
	fg      = lipgloss.Color("#E5E7EB")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	groupStyle  = lipgloss.NewStyle().Bold(true).Foreground(fg).MarginTop(1)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	unreadStyle = lipgloss.NewStyle().Bold(true).Foreground(fg)
	readStyle   = lipgloss.NewStyle().Foreground(dim)
	onStyle     = lipgloss.NewStyle().Foreground(success)
	offStyle    = lipgloss.NewStyle().Foreground(danger)
	badgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(warning)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

// RenderStats renders the counter badge and connection state.
func RenderStats(c stats.Counts, connected bool) string {
	state := offStyle.Render("● offline")
	if connected {
		state = onStyle.Render("● live")
	}
	unread := dimStyle.Render("0 unread")
	if c.Unread > 0 {
		unread = badgeStyle.Render(fmt.Sprintf("%d unread", c.Unread))
	}
	body := headerStyle.Render("Notifications") + "  " + state + "\n" +
		fmt.Sprintf("%s  %s", unread, dimStyle.Render(fmt.Sprintf("%d total", c.Total)))
	return boxStyle.Render(body) + "\n"
}

// RenderNotification renders one list row.
func RenderNotification(n models.Notification, now time.Time) string {
	marker, style := "●", unreadStyle
	if n.IsRead {
		marker, style = "○", readStyle
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %s %s  %s\n", style.Render(marker), style.Render(n.Title), dimStyle.Render(age(n.CreatedAt, now)))
	if ctx := contextLine(n.Metadata); ctx != "" {
		fmt.Fprintf(&b, "    %s\n", dimStyle.Render(ctx))
	}
	fmt.Fprintf(&b, "    %s\n", dimStyle.Render(n.ID))
	return b.String()
}

// RenderGroups renders the Today/Yesterday/Earlier sections.
func RenderGroups(groups iter.Seq2[notifstore.DateGroup, []models.Notification], now time.Time) string {
	var b strings.Builder
	empty := true
	for group, items := range groups {
		empty = false
		b.WriteString(groupStyle.Render(fmt.Sprintf("%s (%d)", group, len(items))))
		b.WriteString("\n")
		for _, n := range items {
			b.WriteString(RenderNotification(n, now))
		}
	}
	if empty {
		return dimStyle.Render("No notifications.") + "\n"
	}
	return b.String()
}

// RenderPage renders a flat page with a load-more hint.
func RenderPage(p notifstore.Page, now time.Time) string {
	if len(p.Items) == 0 {
		return dimStyle.Render("No notifications.") + "\n"
	}
	var b strings.Builder
	for _, n := range p.Items {
		b.WriteString(RenderNotification(n, now))
	}
	if p.HasMore {
		fmt.Fprintf(&b, "\n%s\n", dimStyle.Render(fmt.Sprintf("more available, use --page %d", p.Page+1)))
	}
	return b.String()
}

// RenderComment renders one comment of a task thread. author falls back to
// the author id when empty.
func RenderComment(c models.Comment, author string) string {
	if author == "" {
		author = c.AuthorID
	}
	return fmt.Sprintf("%s %s  %s\n",
		headerStyle.Render(author),
		dimStyle.Render(c.CreatedAt.Local().Format(time.Kitchen)),
		c.Content)
}

// RenderCounters renders the inbound frame counters of a session.
func RenderCounters(c dispatch.Counters) string {
	return dimStyle.Render(fmt.Sprintf("applied %d  duplicates %d  dropped %d", c.Applied, c.Duplicates, c.Dropped)) + "\n"
}

func contextLine(m models.NotificationMetadata) string {
	var parts []string
	if m.TaskName != "" {
		parts = append(parts, "task "+m.TaskName)
	}
	if m.CommentExcerpt != "" {
		parts = append(parts, "“"+m.CommentExcerpt+"”")
	}
	return strings.Join(parts, "  ")
}

func age(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Local().Format("Jan 2")
}
