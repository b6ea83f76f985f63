package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventStatus captures the processing state reported by the source row.
type EventStatus string

const (
	EventStatusProcessed EventStatus = "processed"
	EventStatusPending   EventStatus = "pending"
	EventStatusError     EventStatus = "error"
)

// ParseEventStatus normalizes a free-form status column value. Unknown or empty
// values are treated as processed.
func ParseEventStatus(value string) EventStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error", "failed", "failure":
		return EventStatusError
	case "pending", "queued", "new":
		return EventStatusPending
	default:
		return EventStatusProcessed
	}
}

// Event is a single row surfaced from the stream. Events are never mutated after creation.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Type        string      `json:"type"`
	Source      string      `json:"source"`
	Description string      `json:"description"`
	Status      EventStatus `json:"status"`
	Timestamp   int64       `json:"timestamp"` // epoch milliseconds
	RawID       *string     `json:"raw_id,omitempty"`
}

// NewEvent creates an event with a fresh identifier.
func NewEvent(eventType, source, description string, status EventStatus, at time.Time, rawID string) Event {
	e := Event{
		ID:          uuid.New(),
		Type:        eventType,
		Source:      source,
		Description: description,
		Status:      status,
		Timestamp:   at.UnixMilli(),
	}
	if rawID != "" {
		id := rawID
		e.RawID = &id
	}
	return e
}

// Time returns the event timestamp as a time.Time in UTC.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Key returns the composite dedup key for the event, or "" when it carries no raw id.
func (e Event) Key() string {
	if e.RawID == nil {
		return ""
	}
	return CompositeKey(e.Source, *e.RawID)
}

// CompositeKey joins a table name and a row identifier into the dedup key format.
func CompositeKey(table, rowID string) string {
	return table + ":" + rowID
}

// SplitCompositeKey is the inverse of CompositeKey. Row ids may themselves contain ':'.
func SplitCompositeKey(key string) (table, rowID string, ok bool) {
	idx := strings.Index(key, ":")
	if idx <= 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
