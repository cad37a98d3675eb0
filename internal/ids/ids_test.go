package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_SortsByTime(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := New(base)
	b := New(base.Add(time.Millisecond))
	require.Less(t, a, b)
	require.True(t, Valid(a))
}

func TestNew_MonotonicWithinSameMillisecond(t *testing.T) {
	ts := time.Now()
	a := New(ts)
	b := New(ts)
	require.NotEqual(t, a, b)
	require.Less(t, a, b)
}

func TestValid_Rejects(t *testing.T) {
	require.False(t, Valid("task-123"))
}
