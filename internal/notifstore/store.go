// Package notifstore is the client-side cache of one recipient's
// notifications. It merges REST-fetched pages with pushed records into a
// single order: creation time descending, then id descending.
package notifstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"task-notifications/internal/models"
	"task-notifications/internal/restclient"
)

// DefaultPageSize is used when a query does not set one.
const DefaultPageSize = 20

// Fetcher loads notification pages from the REST API.
type Fetcher interface {
	FetchNotifications(ctx context.Context, q restclient.NotificationQuery) (restclient.NotificationPage, error)
}

// Query selects the cumulative list up to Page.
type Query struct {
	Page       int
	PageSize   int
	OnlyUnread bool
}

func (q Query) normalized(defaultSize int) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultSize
	}
	return q
}

// Page is the result of List.
type Page struct {
	Items      []models.Notification
	Page       int
	PageSize   int
	TotalPages int
	HasMore    bool
}

// mark is a position in the store order.
type mark struct {
	createdAt time.Time
	id        string
}

func markOf(n *models.Notification) mark { return mark{createdAt: n.CreatedAt, id: n.ID} }

// newer reports whether a sorts before b.
func (a mark) newer(b mark) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.After(b.createdAt)
	}
	return a.id > b.id
}

func compareMarks(a, b mark) int {
	switch {
	case a.newer(b):
		return -1
	case b.newer(a):
		return 1
	}
	return 0
}

// cursor tracks server pagination for one filter.
type cursor struct {
	pageSize   int
	fetched    int
	totalPages int
	loaded     bool
}

func (c *cursor) complete() bool { return c.loaded && c.fetched >= c.totalPages }

// Store holds the merged records. All mutations are single atomic steps
// under mu.
type Store struct {
	mu          sync.RWMutex
	recipientID string
	fetcher     Fetcher
	pageSize    int

	byID    map[string]*models.Notification
	ordered []*models.Notification

	cursors   map[bool]*cursor
	watermark mark
	hasMark   bool
}

// New creates an empty store for recipientID.
func New(recipientID string, fetcher Fetcher, pageSize int) *Store {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Store{
		recipientID: recipientID,
		fetcher:     fetcher,
		pageSize:    pageSize,
		byID:        make(map[string]*models.Notification),
		cursors:     make(map[bool]*cursor),
	}
}

// List returns the records of pages 1..q.Page plus every pushed record newer
// than the fetch watermark. It only fetches when the cache cannot satisfy q.
func (s *Store) List(ctx context.Context, q Query) (Page, error) {
	q = q.normalized(s.pageSize)
	for {
		next, ok := s.nextFetch(q)
		if !ok {
			break
		}
		if err := s.fetch(ctx, q, next); err != nil {
			return Page{}, err
		}
	}
	return s.derive(q), nil
}

// LoadMore lists one page beyond current.
func (s *Store) LoadMore(ctx context.Context, current Query) (Page, error) {
	current = current.normalized(s.pageSize)
	current.Page++
	return s.List(ctx, current)
}

// nextFetch returns the server page still needed to satisfy q.
func (s *Store) nextFetch(q Query) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := s.cursors[q.OnlyUnread]
	if cur != nil && cur.pageSize != q.PageSize {
		cur = nil
	}
	if cur != nil && cur.complete() {
		return 0, false
	}
	if q.OnlyUnread {
		if all := s.cursors[false]; all != nil && all.complete() {
			return 0, false
		}
		if s.countLocked(true) >= q.Page*q.PageSize {
			return 0, false
		}
	}
	if cur != nil && cur.fetched >= q.Page {
		return 0, false
	}
	if cur == nil {
		return 1, true
	}
	return cur.fetched + 1, true
}

func (s *Store) fetch(ctx context.Context, q Query, page int) error {
	req := restclient.NotificationQuery{
		RecipientID: s.recipientID,
		Page:        page,
		Limit:       q.PageSize,
	}
	if q.OnlyUnread {
		unread := false
		req.IsRead = &unread
	}
	res, err := s.fetcher.FetchNotifications(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch notifications page %d: %w", page, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range res.Items {
		s.upsertLocked(res.Items[i])
	}
	cur := s.cursors[q.OnlyUnread]
	if cur == nil || cur.pageSize != q.PageSize {
		cur = &cursor{pageSize: q.PageSize}
		s.cursors[q.OnlyUnread] = cur
	}
	if page > cur.fetched {
		cur.fetched = page
	}
	cur.totalPages = res.TotalPages
	cur.loaded = true

	if !s.hasMark && page == 1 {
		s.setWatermarkLocked(res.Items)
	}
	return nil
}

func (s *Store) setWatermarkLocked(items []models.Notification) {
	s.hasMark = true
	s.watermark = mark{}
	for i := range items {
		if m := markOf(&items[i]); m.newer(s.watermark) {
			s.watermark = m
		}
	}
}

// Refresh refetches the first unfiltered page and moves the watermark to its
// top record. Used after a reconnect to pick up anything pushed while the
// channel was down. Later List calls refetch from page 2 on.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	size := s.pageSize
	if cur := s.cursors[false]; cur != nil {
		size = cur.pageSize
	}
	s.mu.RUnlock()

	res, err := s.fetcher.FetchNotifications(ctx, restclient.NotificationQuery{
		RecipientID: s.recipientID,
		Page:        1,
		Limit:       size,
	})
	if err != nil {
		return fmt.Errorf("refresh notifications: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range res.Items {
		s.upsertLocked(res.Items[i])
	}
	s.setWatermarkLocked(res.Items)
	// Records created while offline shift every later server page, so only
	// page 1 is known to be contiguous now. Deeper pages are fetched again.
	s.cursors[false] = &cursor{
		pageSize:   size,
		fetched:    1,
		totalPages: res.TotalPages,
		loaded:     true,
	}
	delete(s.cursors, true)
	return nil
}

func (s *Store) derive(q Query) Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*models.Notification
	pushed := 0
	for _, n := range s.ordered {
		if q.OnlyUnread && n.IsRead {
			continue
		}
		filtered = append(filtered, n)
		if s.hasMark && markOf(n).newer(s.watermark) {
			pushed++
		}
	}

	limit := q.Page*q.PageSize + pushed
	hasMore := len(filtered) > limit
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	out := Page{Page: q.Page, PageSize: q.PageSize, Items: make([]models.Notification, 0, len(filtered))}
	for _, n := range filtered {
		out.Items = append(out.Items, clone(n))
	}
	if cur := s.cursors[q.OnlyUnread]; cur != nil {
		out.TotalPages = cur.totalPages
		hasMore = hasMore || !cur.complete()
	}
	out.HasMore = hasMore
	return out
}

// ApplyPush inserts or updates the pushed record and reports whether it was
// new to the store.
func (s *Store) ApplyPush(n models.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(n)
}

// upsertLocked merges n into the store. Read state only moves false to true
// here; RevertRead is the single way back.
func (s *Store) upsertLocked(n models.Notification) bool {
	if n.IsArchived {
		if _, ok := s.byID[n.ID]; ok {
			s.removeLocked(n.ID)
			clear(s.cursors)
		}
		return false
	}
	cp := clone(&n)
	existing, ok := s.byID[n.ID]
	if !ok {
		s.insertLocked(&cp)
		return true
	}

	cp.IsRead = cp.IsRead || existing.IsRead
	if cp.IsRead && !existing.IsRead {
		s.dropUnreadCursorLocked()
	}
	if !cp.CreatedAt.Equal(existing.CreatedAt) {
		s.removeLocked(n.ID)
		s.insertLocked(&cp)
		return false
	}
	*existing = cp
	return false
}

func (s *Store) insertLocked(n *models.Notification) {
	idx, _ := slices.BinarySearchFunc(s.ordered, markOf(n), func(e *models.Notification, m mark) int {
		return compareMarks(markOf(e), m)
	})
	s.ordered = slices.Insert(s.ordered, idx, n)
	s.byID[n.ID] = n
}

func (s *Store) removeLocked(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	s.ordered = slices.DeleteFunc(s.ordered, func(e *models.Notification) bool { return e.ID == id })
}

// dropUnreadCursorLocked forgets unread-filter pagination. The server pages
// that filter by offset, so every record leaving the unread set shifts the
// later pages up; continuing from the old cursor would skip records. The
// next unread List is served from cache if it can be, otherwise it pages
// again from 1.
func (s *Store) dropUnreadCursorLocked() {
	delete(s.cursors, true)
}

// MarkRead flips one record to read. changed is false when the record is
// absent or already read.
func (s *Store) MarkRead(id string) (changed, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return false, false
	}
	if n.IsRead {
		return false, true
	}
	n.IsRead = true
	s.dropUnreadCursorLocked()
	return true, true
}

// RevertRead undoes an optimistic MarkRead.
func (s *Store) RevertRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || !n.IsRead {
		return false
	}
	n.IsRead = false
	return true
}

// MarkAllRead flips every unread record and returns the flipped ids.
func (s *Store) MarkAllRead() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, n := range s.ordered {
		if !n.IsRead {
			n.IsRead = true
			ids = append(ids, n.ID)
		}
	}
	if len(ids) > 0 {
		s.dropUnreadCursorLocked()
	}
	return ids
}

// MarkReadUpTo flips unread records created at or before t and returns the
// flipped ids. Records created later stay unread.
func (s *Store) MarkReadUpTo(t time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, n := range s.ordered {
		if !n.IsRead && !n.CreatedAt.After(t) {
			n.IsRead = true
			ids = append(ids, n.ID)
		}
	}
	if len(ids) > 0 {
		s.dropUnreadCursorLocked()
	}
	return ids
}

// CountUnreadAfter counts unread records created strictly after t.
func (s *Store) CountUnreadAfter(t time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.ordered {
		if !n.CreatedAt.After(t) {
			break
		}
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (models.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return models.Notification{}, false
	}
	return clone(n), true
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// Snapshot returns copies of every cached record in store order.
func (s *Store) Snapshot() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.ordered))
	for _, n := range s.ordered {
		out = append(out, clone(n))
	}
	return out
}

func (s *Store) countLocked(onlyUnread bool) int {
	if !onlyUnread {
		return len(s.ordered)
	}
	count := 0
	for _, n := range s.ordered {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func clone(n *models.Notification) models.Notification {
	cp := *n
	cp.Metadata.Mentions = slices.Clone(n.Metadata.Mentions)
	if n.SenderID != nil {
		sender := strings.Clone(*n.SenderID)
		cp.SenderID = &sender
	}
	return cp
}
