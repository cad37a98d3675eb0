// Package session wires the client core for one signed-in identity: the live
// channel, the notification store, the counters, the read coordinator and
// the comment rooms. A session is never shared across identities.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"task-notifications/internal/dispatch"
	"task-notifications/internal/events"
	"task-notifications/internal/liveconn"
	"task-notifications/internal/models"
	"task-notifications/internal/notifstore"
	"task-notifications/internal/readstate"
	"task-notifications/internal/restclient"
	"task-notifications/internal/rooms"
	"task-notifications/internal/stats"
)

// Config holds the client-side tunables.
type Config struct {
	BaseURL        string
	PageSize       int
	ResyncInterval time.Duration
	ReconnectBase  time.Duration
	ReconnectMax   time.Duration
	DedupTTL       time.Duration
	CommentBuffer  int
	// Dialer overrides the websocket dialer, mostly for tests.
	Dialer liveconn.Dialer
}

// Identity is the signed-in user a session is scoped to.
type Identity struct {
	UserID   string
	Username string
	Token    string
}

// Login exchanges credentials for an Identity.
func Login(ctx context.Context, baseURL, username, password string) (Identity, error) {
	res, err := restclient.New(baseURL, "").Login(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: res.UserID, Username: res.Username, Token: res.Token}, nil
}

// Session is the per-identity client core.
type Session struct {
	id  Identity
	api *restclient.Client

	store   *notifstore.Store
	agg     *stats.Aggregator
	coord   *readstate.Coordinator
	tracker *rooms.Tracker
	disp    *dispatch.Dispatcher
	conn    *liveconn.Manager

	changes chan struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	log       zerolog.Logger
}

// Open builds the session, takes an initial counter snapshot and starts the
// live channel and the periodic resync. A failed initial snapshot is logged;
// the session still opens and converges on the next resync.
func Open(ctx context.Context, cfg Config, id Identity, log zerolog.Logger) (*Session, error) {
	if id.UserID == "" || id.Token == "" {
		return nil, errors.New("session: identity requires user id and token")
	}
	wsURL, err := liveconn.WebsocketURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	log = log.With().Str("user_id", id.UserID).Logger()

	api := restclient.New(cfg.BaseURL, id.Token)
	store := notifstore.New(id.UserID, api, cfg.PageSize)
	agg := stats.New(id.UserID, api, log)
	coord := readstate.New(id.UserID, api, store, agg, log)
	tracker := rooms.NewTracker(log, cfg.CommentBuffer)
	changes := make(chan struct{}, 1)
	signal := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	disp := dispatch.New(id.UserID, store, agg, coord, tracker, log, dispatch.Options{
		DedupTTL:  cfg.DedupTTL,
		OnApplied: func(events.Kind) { signal() },
	})

	conn := liveconn.New(liveconn.Config{
		URL:       wsURL,
		Token:     id.Token,
		BaseDelay: cfg.ReconnectBase,
		MaxDelay:  cfg.ReconnectMax,
		Dialer:    cfg.Dialer,
	}, disp.Dispatch, log)

	s := &Session{
		id:      id,
		api:     api,
		store:   store,
		agg:     agg,
		coord:   coord,
		tracker: tracker,
		disp:    disp,
		conn:    conn,
		changes: changes,
		log:     log.With().Str("component", "session").Logger(),
	}

	conn.OnPreConnect(func(_ context.Context, e liveconn.Emitter) error {
		return tracker.Resume(e)
	})
	conn.OnDisconnect(tracker.Suspend)
	conn.OnDisconnect(signal)
	conn.OnConnect(func(ctx context.Context, reconnect bool) {
		signal()
		s.resync(ctx, reconnect)
		signal()
	})

	if err := agg.Resync(ctx); err != nil {
		s.log.Warn().Err(err).Msg("initial stats snapshot failed")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if err := conn.Start(runCtx); err != nil {
		cancel()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		agg.Run(runCtx, cfg.ResyncInterval)
	}()
	return s, nil
}

// resync forces a full snapshot on every (re)connect. After a reconnect the
// first page is refetched too, covering pushes missed while down.
func (s *Session) resync(ctx context.Context, reconnect bool) {
	if err := s.agg.Resync(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("stats resync after connect failed")
	}
	if !reconnect {
		return
	}
	if err := s.store.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("notification refresh after reconnect failed")
	}
}

// Changes signals that the cached notifications, the counters or the channel
// state may have moved. Signals coalesce: one pending value stands for any
// number of changes, so readers re-read everything they show.
func (s *Session) Changes() <-chan struct{} { return s.changes }

// Identity returns the identity the session is scoped to.
func (s *Session) Identity() Identity { return s.id }

// API returns the REST client bound to the session's token.
func (s *Session) API() *restclient.Client { return s.api }

// Connected reports whether the live channel is up.
func (s *Session) Connected() bool { return s.conn.Connected() }

// Notifications lists pages 1..q.Page, merged with live inserts.
func (s *Session) Notifications(ctx context.Context, q notifstore.Query) (notifstore.Page, error) {
	return s.store.List(ctx, q)
}

// LoadMore extends the list by one page.
func (s *Session) LoadMore(ctx context.Context, current notifstore.Query) (notifstore.Page, error) {
	return s.store.LoadMore(ctx, current)
}

// Groups is the Today/Yesterday/Earlier view over everything cached.
func (s *Session) Groups(now time.Time) iter.Seq2[notifstore.DateGroup, []models.Notification] {
	return s.store.GroupByDate(now)
}

// Stats returns the current counters.
func (s *Session) Stats() stats.Counts { return s.agg.Get() }

// Resync replaces the counters with a fresh server snapshot.
func (s *Session) Resync(ctx context.Context) error { return s.agg.Resync(ctx) }

// WaitConnected blocks until the live channel is up or ctx is done.
func (s *Session) WaitConnected(ctx context.Context) bool {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !s.conn.Connected() {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

// ReadState returns the read state of one notification.
func (s *Session) ReadState(id string) readstate.State { return s.coord.State(id) }

// MarkAsRead marks one notification read.
func (s *Session) MarkAsRead(ctx context.Context, id string) error {
	return s.coord.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks every notification of the identity read.
func (s *Session) MarkAllAsRead(ctx context.Context) error {
	return s.coord.MarkAllAsRead(ctx)
}

// WatchComments joins the task's comment room. Close the subscription to
// leave it.
func (s *Session) WatchComments(taskID string) *rooms.Subscription {
	return s.tracker.Join(taskID)
}

// DispatchCounters reports what happened to inbound frames so far.
func (s *Session) DispatchCounters() dispatch.Counters { return s.disp.Counters() }

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Disconnect()
		s.wg.Wait()
		s.tracker.Close()
		s.log.Debug().Msg("session closed")
	})
}
