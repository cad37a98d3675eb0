package tui_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"task-notifications/internal/models"
	"task-notifications/internal/notifstore"
	"task-notifications/internal/stats"
	"task-notifications/internal/tui"
)

var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)

func sample() []models.Notification {
	return []models.Notification{
		{ID: "n-3", Title: "You were mentioned", CreatedAt: now.Add(-5 * time.Minute),
			Metadata: models.NotificationMetadata{TaskName: "ship", CommentExcerpt: "ping"}},
		{ID: "n-2", Title: "Status changed", IsRead: true, CreatedAt: now.Add(-24 * time.Hour)},
		{ID: "n-1", Title: "Assigned", CreatedAt: now.Add(-72 * time.Hour)},
	}
}

func TestRenderStats(t *testing.T) {
	out := tui.RenderStats(stats.Counts{Total: 11, Unread: 4}, true)
	assert.Contains(t, out, "4 unread")
	assert.Contains(t, out, "11 total")
	assert.Contains(t, out, "live")

	out = tui.RenderStats(stats.Counts{}, false)
	assert.Contains(t, out, "0 unread")
	assert.Contains(t, out, "offline")
}

func TestRenderGroups(t *testing.T) {
	out := tui.RenderGroups(notifstore.GroupByDate(sample(), now), now)
	assert.Contains(t, out, "Today (1)")
	assert.Contains(t, out, "Yesterday (1)")
	assert.Contains(t, out, "Earlier (1)")
	assert.Contains(t, out, "5m ago")
	assert.Contains(t, out, "task ship")
}

func TestRenderGroups_Empty(t *testing.T) {
	out := tui.RenderGroups(notifstore.GroupByDate(nil, now), now)
	assert.Contains(t, out, "No notifications.")
}

func TestRenderPage_HasMore(t *testing.T) {
	out := tui.RenderPage(notifstore.Page{Items: sample(), Page: 1, HasMore: true}, now)
	assert.Contains(t, out, "--page 2")
	assert.Contains(t, out, "n-1")
}

func TestRenderComment_AuthorFallsBackToID(t *testing.T) {
	c := models.Comment{ID: "c-1", AuthorID: "u-2", Content: "looks good", CreatedAt: now}
	assert.Contains(t, tui.RenderComment(c, "bob"), "bob")
	assert.NotContains(t, tui.RenderComment(c, "bob"), "u-2")
	assert.Contains(t, tui.RenderComment(c, ""), "u-2")
}
