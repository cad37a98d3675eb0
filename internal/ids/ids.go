// Package ids generates time-sortable record identifiers.
//
// Notification and comment ids are ULIDs: their lexical order follows
// creation time, so "descending id" is a meaningful tie-break when two
// records share a timestamp.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a ULID stamped with t.
func New(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Valid reports whether s parses as a ULID.
func Valid(s string) bool {
	_, err := ulid.Parse(s)
	return err == nil
}
