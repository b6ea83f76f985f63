// Package auth implements the mock access-key gate in front of the dashboard API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/metrics"
	"github.com/rpattn/streamgate/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMockKey is the access key accepted when none is configured.
const DefaultMockKey = "gate-demo-key"

// SessionHeader is an alternative to the Authorization bearer header.
const SessionHeader = "X-Session-Token"

var (
	ErrInvalidKey = errors.New("invalid access key")
	ErrNoSession  = errors.New("no active session")
)

// Gate compares entered keys against the mock key and manages sessions.
type Gate struct {
	key     string
	repo    repository.SessionRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewGate builds a gate. An empty key falls back to DefaultMockKey.
func NewGate(key string, repo repository.SessionRepository, m *metrics.Metrics, logger *zap.Logger) *Gate {
	if key == "" {
		key = DefaultMockKey
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{key: key, repo: repo, metrics: m, logger: logger}
}

// Login grants a session when key matches the mock key exactly.
func (g *Gate) Login(ctx context.Context, key string, profile domain.UserProfile) (domain.Session, error) {
	if subtle.ConstantTimeCompare([]byte(key), []byte(g.key)) != 1 {
		g.metrics.LoginAttempts.WithLabelValues("denied").Inc()
		g.logger.Info("login denied", zap.String("name", profile.Name))
		return domain.Session{}, ErrInvalidKey
	}

	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		profile.Name = "Guest"
	}
	session := domain.NewSession(profile, key)
	if err := g.repo.Save(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("failed to persist session: %w", err)
	}

	g.metrics.LoginAttempts.WithLabelValues("granted").Inc()
	g.logger.Info("login granted", zap.String("name", profile.Name), zap.String("role", profile.Role))
	return session, nil
}

// Logout removes the session. Unknown tokens are ignored.
func (g *Gate) Logout(ctx context.Context, token uuid.UUID) error {
	if err := g.repo.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// Session looks up an active session.
func (g *Gate) Session(ctx context.Context, token uuid.UUID) (domain.Session, error) {
	session, err := g.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, ErrNoSession
		}
		return domain.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Middleware rejects requests without a valid session token and stores the
// session in the request context otherwise.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromRequest(r)
		if !ok {
			http.Error(w, ErrNoSession.Error(), http.StatusUnauthorized)
			return
		}
		session, err := g.Session(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrNoSession) {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			g.logger.Error("session lookup failed", zap.Error(err))
			http.Error(w, "session lookup failed", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}

// Attach stores the session in the request context when the request carries a
// valid token and passes every request through. Handlers decide for themselves
// whether a session is required.
func (g *Gate) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromRequest(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		session, err := g.Session(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				g.logger.Error("session lookup failed", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}

// TokenFromRequest reads the session token from the Authorization bearer header
// or from X-Session-Token.
func TokenFromRequest(r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.Header.Get(SessionHeader))
	if raw == "" {
		authz := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			raw = strings.TrimSpace(authz[7:])
		}
	}
	if raw == "" {
		return uuid.Nil, false
	}
	token, err := uuid.Parse(raw)
	if err != nil || token == uuid.Nil {
		return uuid.Nil, false
	}
	return token, true
}
