// Package liveconn owns the client's single live push channel: dialing,
// reconnecting with backoff, and the outbound room commands.
package liveconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"task-notifications/internal/events"
)

const (
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	readLimit  = 1 << 20
	closeGrace = time.Second
)

// Emitter sends room commands on one specific connection.
type Emitter interface {
	Emit(cmd events.Command, taskID string) error
}

// PreConnectHook runs on a fresh connection before Connected reports true.
// An error drops the connection and schedules a retry.
type PreConnectHook func(ctx context.Context, e Emitter) error

// ConnectHook runs after Connected reports true. reconnect is false only for
// the first successful connection of the manager.
type ConnectHook func(ctx context.Context, reconnect bool)

// Config configures a Manager.
type Config struct {
	URL       string
	Token     string
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts stops retrying after that many consecutive failures; 0
	// retries until Disconnect.
	MaxAttempts int
	Dialer      Dialer
}

// Manager keeps one logical channel alive for one identity.
type Manager struct {
	cfg     Config
	dialer  Dialer
	handler func([]byte)
	log     zerolog.Logger

	preConnect   []PreConnectHook
	onConnect    []ConnectHook
	onDisconnect []func()

	mu        sync.Mutex
	conn      Conn
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
	hooks     sync.WaitGroup

	writeMu sync.Mutex
}

// New creates an idle manager. handler receives every inbound data frame in
// arrival order.
func New(cfg Config, handler func([]byte), log zerolog.Logger) *Manager {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	return &Manager{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		log:     log.With().Str("component", "liveconn").Logger(),
	}
}

// OnPreConnect registers a hook run before the channel is announced.
func (m *Manager) OnPreConnect(h PreConnectHook) { m.preConnect = append(m.preConnect, h) }

// OnConnect registers a hook run after the channel is announced.
func (m *Manager) OnConnect(h ConnectHook) { m.onConnect = append(m.onConnect, h) }

// OnDisconnect registers a hook run whenever an established channel drops.
func (m *Manager) OnDisconnect(h func()) { m.onDisconnect = append(m.onDisconnect, h) }

// Connected reports whether the channel is up and announced.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Start launches the connect loop. It returns at once; use Connected or a
// ConnectHook to observe the channel.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("liveconn: already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	return nil
}

// Disconnect stops the loop, closes the channel and waits for the loop and
// every running ConnectHook to return. It is safe to call more than once.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Emit sends a room command on the current channel.
func (m *Manager) Emit(cmd events.Command, taskID string) error {
	m.mu.Lock()
	conn, up := m.conn, m.connected
	m.mu.Unlock()
	if !up || conn == nil {
		return ErrNotConnected
	}
	return m.write(conn, cmd, taskID)
}

func (m *Manager) write(conn Conn, cmd events.Command, taskID string) error {
	frame, err := events.EncodeCommand(cmd, taskID)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// connEmitter writes to one connection regardless of the announced state.
type connEmitter struct {
	m    *Manager
	conn Conn
}

func (e connEmitter) Emit(cmd events.Command, taskID string) error {
	return e.m.write(e.conn, cmd, taskID)
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.hooks.Wait()

	b := newBackoff(m.cfg.BaseDelay, m.cfg.MaxDelay)
	established := false
	failures := 0

	for {
		announced, err := m.session(ctx, established)
		if announced {
			established = true
			failures = 0
			b.reset()
		}
		if ctx.Err() != nil {
			return
		}
		failures++
		if m.cfg.MaxAttempts > 0 && failures >= m.cfg.MaxAttempts {
			m.log.Error().Err(err).Int("failures", failures).Msg("giving up on live channel")
			return
		}

		delay := b.next()
		m.log.Warn().Err(err).Dur("retry_in", delay).Msg("live channel down")
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// session dials, announces and reads one connection until it fails. It
// reports whether the connection got as far as being announced.
func (m *Manager) session(ctx context.Context, reconnect bool) (bool, error) {
	header := http.Header{}
	if m.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+m.cfg.Token)
	}
	conn, err := m.dialer.Dial(ctx, m.cfg.URL, header)
	if err != nil {
		return false, &TransportError{Op: "dial", Err: err}
	}
	stop := context.AfterFunc(ctx, func() { m.closeConn(conn) })
	defer stop()

	for _, h := range m.preConnect {
		if err := h(ctx, connEmitter{m: m, conn: conn}); err != nil {
			_ = conn.Close()
			return false, &TransportError{Op: "resume", Err: err}
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		m.writeMu.Lock()
		defer m.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	m.mu.Lock()
	m.conn = conn
	m.connected = true
	m.mu.Unlock()
	m.log.Info().Bool("reconnect", reconnect).Msg("live channel connected")

	for _, h := range m.onConnect {
		m.hooks.Go(func() { h(ctx, reconnect) })
	}

	err = m.readLoop(conn)

	m.mu.Lock()
	m.conn = nil
	m.connected = false
	m.mu.Unlock()
	_ = conn.Close()
	for _, h := range m.onDisconnect {
		h()
	}
	return true, err
}

func (m *Manager) readLoop(conn Conn) error {
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if len(data) > readLimit {
			m.log.Warn().Int("bytes", len(data)).Msg("oversized frame dropped")
			continue
		}
		m.handler(data)
	}
}

func (m *Manager) closeConn(conn Conn) {
	m.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
		time.Now().Add(closeGrace))
	m.writeMu.Unlock()
	if err := conn.Close(); err != nil {
		m.log.Debug().Err(fmt.Errorf("close: %w", err)).Msg("closing live channel")
	}
}
