package repository

import (
	"context"
	"errors"

	"github.com/rpattn/streamgate/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ProcessedKeyRepository persists the set of composite keys already surfaced.
type ProcessedKeyRepository interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, keys []string) error
	Clear(ctx context.Context) error
}

// SessionRepository persists dashboard sessions.
type SessionRepository interface {
	Save(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, token uuid.UUID) (domain.Session, error)
	Delete(ctx context.Context, token uuid.UUID) error
}
