package liveconn

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 30 * time.Second
)

// backoff yields exponentially growing, jittered, capped delays.
type backoff struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

func newBackoff(base, maxDelay time.Duration) *backoff {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if maxDelay < base {
		maxDelay = DefaultMaxDelay
		if maxDelay < base {
			maxDelay = base
		}
	}
	return &backoff{base: base, max: maxDelay}
}

func (b *backoff) next() time.Duration {
	delay := b.max
	if b.attempt < 32 {
		if d := b.base << b.attempt; d > 0 && d < b.max {
			delay = d
		}
	}
	b.attempt++
	jitter := time.Duration(rand.Int64N(int64(b.base)/2 + 1))
	return min(delay+jitter, b.max)
}

func (b *backoff) reset() { b.attempt = 0 }
