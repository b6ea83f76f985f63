package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/streamgate/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository wires a repository backed by pgxpool.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Save(ctx context.Context, session domain.Session) error {
	if r.pool == nil {
		return fmt.Errorf("session repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO sessions (token, profile_name, profile_email, profile_role, access_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (token) DO UPDATE
		   SET profile_name = EXCLUDED.profile_name,
		       profile_email = EXCLUDED.profile_email,
		       profile_role = EXCLUDED.profile_role,
		       access_key = EXCLUDED.access_key`,
		session.Token,
		session.Profile.Name,
		session.Profile.Email,
		session.Profile.Role,
		session.AccessKey,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, token uuid.UUID) (domain.Session, error) {
	if r.pool == nil {
		return domain.Session{}, fmt.Errorf("session repository not initialized")
	}

	var (
		session   domain.Session
		createdAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT token, profile_name, profile_email, profile_role, access_key, created_at
		 FROM sessions
		 WHERE token = $1`,
		token,
	).Scan(
		&session.Token,
		&session.Profile.Name,
		&session.Profile.Email,
		&session.Profile.Role,
		&session.AccessKey,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if createdAt.Valid {
		session.CreatedAt = createdAt.Time
	}
	return session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, token uuid.UUID) error {
	if r.pool == nil {
		return fmt.Errorf("session repository not initialized")
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
