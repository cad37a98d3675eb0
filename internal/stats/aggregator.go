// Package stats keeps the client's total/unread counters for one recipient.
//
// Counters move by optimistic deltas between snapshots. A snapshot, fetched
// or pushed, always replaces them outright and bumps a generation so that a
// late rollback of a delta taken before the snapshot is discarded.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"task-notifications/internal/models"
)

// DefaultResyncInterval bounds how long counters may drift on missed pushes.
const DefaultResyncInterval = 2 * time.Minute

// Fetcher loads the authoritative counters.
type Fetcher interface {
	FetchStats(ctx context.Context, recipientID string) (models.NotificationStats, error)
}

// Counts is the value returned by Get.
type Counts struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
}

// Generation identifies the snapshot a delta was applied on top of.
type Generation uint64

// Aggregator owns the counters.
type Aggregator struct {
	mu          sync.Mutex
	recipientID string
	fetcher     Fetcher
	counts      Counts
	gen         Generation
	synced      bool
	log         zerolog.Logger
}

// New creates an aggregator at {0,0}. It is not synced until the first
// snapshot lands.
func New(recipientID string, fetcher Fetcher, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		recipientID: recipientID,
		fetcher:     fetcher,
		log:         log.With().Str("component", "stats").Logger(),
	}
}

// Get returns the current counters.
func (a *Aggregator) Get() Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

// Synced reports whether any snapshot has been applied.
func (a *Aggregator) Synced() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.synced
}

// Generation returns the current snapshot generation.
func (a *Aggregator) Generation() Generation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

// Overwrite replaces the counters with an authoritative snapshot.
func (a *Aggregator) Overwrite(s models.NotificationStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts = clamp(Counts{Total: s.Total, Unread: s.Unread})
	a.gen++
	a.synced = true
}

// IncNew accounts for one pushed notification.
func (a *Aggregator) IncNew() Generation {
	return a.apply(func(c *Counts) {
		c.Total++
		c.Unread++
	})
}

// DecUnread accounts for one notification turning read.
func (a *Aggregator) DecUnread() Generation {
	return a.apply(func(c *Counts) { c.Unread-- })
}

// ZeroUnread sets unread to zero and returns the previous value with the
// generation it was taken on.
func (a *Aggregator) ZeroUnread() (int64, Generation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.counts.Unread
	a.counts.Unread = 0
	return prev, a.gen
}

// SetUnread sets unread directly.
func (a *Aggregator) SetUnread(n int64) Generation {
	return a.apply(func(c *Counts) { c.Unread = n })
}

// AddUnread adds delta to unread if no snapshot has landed since gen. It
// reports whether the change was applied.
func (a *Aggregator) AddUnread(gen Generation, delta int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		a.log.Debug().Uint64("gen", uint64(gen)).Uint64("current", uint64(a.gen)).Msg("discarding stale delta")
		return false
	}
	a.counts.Unread += delta
	a.counts = clamp(a.counts)
	return true
}

// SetUnreadIf sets unread to n if no snapshot has landed since gen.
func (a *Aggregator) SetUnreadIf(gen Generation, n int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return false
	}
	a.counts.Unread = n
	a.counts = clamp(a.counts)
	return true
}

func (a *Aggregator) apply(fn func(*Counts)) Generation {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.counts)
	a.counts = clamp(a.counts)
	return a.gen
}

// Resync fetches a snapshot and overwrites the counters with it.
func (a *Aggregator) Resync(ctx context.Context) error {
	s, err := a.fetcher.FetchStats(ctx, a.recipientID)
	if err != nil {
		return fmt.Errorf("resync stats: %w", err)
	}
	a.Overwrite(s)
	return nil
}

// Run resyncs every interval until ctx is done. Failures are logged and
// retried on the next tick.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Resync(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("periodic stats resync failed")
			}
		}
	}
}

func clamp(c Counts) Counts {
	if c.Total < 0 {
		c.Total = 0
	}
	if c.Unread < 0 {
		c.Unread = 0
	}
	if c.Unread > c.Total {
		c.Unread = c.Total
	}
	return c
}
