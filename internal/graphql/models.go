package graphql

import (
	"strings"
	"time"

	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/poller"
)

// EventStatus mirrors domain.EventStatus in the schema's enum casing.
type EventStatus string

const (
	EventStatusProcessed EventStatus = "PROCESSED"
	EventStatusPending   EventStatus = "PENDING"
	EventStatusError     EventStatus = "ERROR"
)

type Event struct {
	ID          string
	Type        string
	Source      string
	Description string
	Status      EventStatus
	Timestamp   float64
	Time        string
	RawID       *string
}

type SourceTable struct {
	Name            string
	Label           string
	TimestampColumn string
	IDColumn        string
	Active          bool
}

type PollerStatus struct {
	RateMs        int
	Source        string
	Paused        bool
	Limit         int
	ProcessedKeys int
	FeedSize      int
	LastTickAt    *string
	LastError     *string
	LastErrorAt   *string
}

type UserProfile struct {
	Name  string
	Email string
	Role  string
}

type Session struct {
	Token     string
	Profile   *UserProfile
	CreatedAt string
}

type LoginInput struct {
	Key   string
	Name  *string
	Email *string
	Role  *string
}

type PollerInput struct {
	RateMs *int64
	Source *string
	Paused *bool
}

func toGraphEvent(e domain.Event) *Event {
	return &Event{
		ID:          e.ID.String(),
		Type:        e.Type,
		Source:      e.Source,
		Description: e.Description,
		Status:      EventStatus(strings.ToUpper(string(e.Status))),
		Timestamp:   float64(e.Timestamp),
		Time:        e.Time().Format(time.RFC3339Nano),
		RawID:       e.RawID,
	}
}

func toGraphSession(s domain.Session) *Session {
	return &Session{
		Token: s.Token.String(),
		Profile: &UserProfile{
			Name:  s.Profile.Name,
			Email: s.Profile.Email,
			Role:  s.Profile.Role,
		},
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func toGraphPollerStatus(s poller.Status) *PollerStatus {
	out := &PollerStatus{
		RateMs:        int(s.RateMs),
		Source:        s.Source,
		Paused:        s.Paused,
		Limit:         s.Limit,
		ProcessedKeys: s.ProcessedKeys,
		FeedSize:      s.FeedSize,
		LastTickAt:    formatTime(s.LastTickAt),
		LastErrorAt:   formatTime(s.LastErrorAt),
	}
	if s.LastError != "" {
		msg := s.LastError
		out.LastError = &msg
	}
	return out
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339)
	return &v
}
