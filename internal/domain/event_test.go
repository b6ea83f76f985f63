package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventStatus(t *testing.T) {
	cases := map[string]EventStatus{
		"":          EventStatusProcessed,
		"done":      EventStatusProcessed,
		"Processed": EventStatusProcessed,
		"FAILED":    EventStatusError,
		"error":     EventStatusError,
		" queued ":  EventStatusPending,
		"pending":   EventStatusPending,
		"whatever":  EventStatusProcessed,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseEventStatus(input), "input %q", input)
	}
}

func TestNewEventKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := NewEvent("insert", "orders", "order 7", EventStatusPending, at, "7")

	require.NotNil(t, e.RawID)
	assert.Equal(t, "orders:7", e.Key())
	assert.Equal(t, at.UnixMilli(), e.Timestamp)
	assert.True(t, e.Time().Equal(at))

	noRaw := NewEvent("insert", "orders", "", EventStatusPending, at, "")
	assert.Nil(t, noRaw.RawID)
	assert.Empty(t, noRaw.Key())
}

func TestSplitCompositeKey(t *testing.T) {
	table, row, ok := SplitCompositeKey("events:a:b")
	require.True(t, ok)
	assert.Equal(t, "events", table)
	assert.Equal(t, "a:b", row)

	_, _, ok = SplitCompositeKey(":nope")
	assert.False(t, ok)
	_, _, ok = SplitCompositeKey("nocolon")
	assert.False(t, ok)
}
