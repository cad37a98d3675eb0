package notifstore

import (
	"iter"
	"time"

	"task-notifications/internal/models"
)

// DateGroup labels a bucket of the grouped view.
type DateGroup string

const (
	GroupToday     DateGroup = "Today"
	GroupYesterday DateGroup = "Yesterday"
	GroupEarlier   DateGroup = "Earlier"
)

// GroupOf returns the bucket createdAt falls into relative to now, using
// now's location for day boundaries.
func GroupOf(createdAt, now time.Time) DateGroup {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	local := createdAt.In(now.Location())
	switch {
	case !local.Before(today):
		return GroupToday
	case !local.Before(today.AddDate(0, 0, -1)):
		return GroupYesterday
	default:
		return GroupEarlier
	}
}

// GroupByDate yields consecutive date buckets over items, which must already
// be in store order. Empty buckets are skipped. The sequence can be ranged
// over any number of times.
func GroupByDate(items []models.Notification, now time.Time) iter.Seq2[DateGroup, []models.Notification] {
	return func(yield func(DateGroup, []models.Notification) bool) {
		start := 0
		for start < len(items) {
			group := GroupOf(items[start].CreatedAt, now)
			end := start + 1
			for end < len(items) && GroupOf(items[end].CreatedAt, now) == group {
				end++
			}
			if !yield(group, items[start:end:end]) {
				return
			}
			start = end
		}
	}
}

// GroupByDate is the grouped view of the whole cache. Each range takes a
// fresh snapshot, so restarting it reflects records applied since; the store
// order itself is never touched.
func (s *Store) GroupByDate(now time.Time) iter.Seq2[DateGroup, []models.Notification] {
	return func(yield func(DateGroup, []models.Notification) bool) {
		for g, items := range GroupByDate(s.Snapshot(), now) {
			if !yield(g, items) {
				return
			}
		}
	}
}
