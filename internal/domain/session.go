package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is the client-supplied identity attached to a session.
type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session grants access to the dashboard API. Sessions do not expire.
type Session struct {
	Token     uuid.UUID   `json:"token"`
	Profile   UserProfile `json:"profile"`
	AccessKey string      `json:"access_key"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewSession creates a session with a fresh token.
func NewSession(profile UserProfile, accessKey string) Session {
	return Session{
		Token:     uuid.New(),
		Profile:   profile,
		AccessKey: accessKey,
		CreatedAt: time.Now().UTC(),
	}
}
