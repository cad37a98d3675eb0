package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Holder owns the current session and replaces it when the identity
// changes, tearing the previous one down first.
type Holder struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger
	cur *Session
}

// NewHolder creates an empty holder.
func NewHolder(cfg Config, log zerolog.Logger) *Holder {
	return &Holder{cfg: cfg, log: log}
}

// SignIn returns the session for id, opening a new one if the identity
// differs from the current one.
func (h *Holder) SignIn(ctx context.Context, id Identity) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cur != nil {
		if h.cur.id == id {
			return h.cur, nil
		}
		h.cur.Close()
		h.cur = nil
	}
	s, err := Open(ctx, h.cfg, id, h.log)
	if err != nil {
		return nil, err
	}
	h.cur = s
	return s, nil
}

// Current returns the active session or nil.
func (h *Holder) Current() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// SignOut closes the active session.
func (h *Holder) SignOut() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur != nil {
		h.cur.Close()
		h.cur = nil
	}
}
