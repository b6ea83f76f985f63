package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T) *Gate {
	t.Helper()
	return NewGate("s3cret", repository.NewFileSessionRepository(t.TempDir()), nil, nil)
}

func TestLoginExactKeyGrantsSession(t *testing.T) {
	g := newGate(t)
	session, err := g.Login(context.Background(), "s3cret", domain.UserProfile{Name: " Ada ", Role: "operator"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, session.Token)
	assert.Equal(t, "Ada", session.Profile.Name)
	assert.Equal(t, "s3cret", session.AccessKey)

	loaded, err := g.Session(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Token, loaded.Token)
}

func TestLoginAnyOtherKeyIsDenied(t *testing.T) {
	g := newGate(t)
	for _, key := range []string{"", "S3CRET", "s3cret ", " s3cret", "s3cre", "s3crett"} {
		_, err := g.Login(context.Background(), key, domain.UserProfile{})
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestDefaultMockKey(t *testing.T) {
	g := NewGate("", repository.NewFileSessionRepository(t.TempDir()), nil, nil)
	session, err := g.Login(context.Background(), DefaultMockKey, domain.UserProfile{})
	require.NoError(t, err)
	assert.Equal(t, "Guest", session.Profile.Name)
}

func TestLogoutRemovesSession(t *testing.T) {
	g := newGate(t)
	session, err := g.Login(context.Background(), "s3cret", domain.UserProfile{Name: "Ada"})
	require.NoError(t, err)

	require.NoError(t, g.Logout(context.Background(), session.Token))
	_, err = g.Session(context.Background(), session.Token)
	assert.ErrorIs(t, err, ErrNoSession)

	assert.NoError(t, g.Logout(context.Background(), session.Token))
}

func TestMiddleware(t *testing.T) {
	g := newGate(t)
	session, err := g.Login(context.Background(), "s3cret", domain.UserProfile{Name: "Ada"})
	require.NoError(t, err)

	var seen domain.Session
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		seen = s
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Authorization", "Bearer "+uuid.NewString())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token.String())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Ada", seen.Profile.Name)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set(SessionHeader, session.Token.String())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAttachPassesThroughWithoutSession(t *testing.T) {
	g := newGate(t)
	session, err := g.Login(context.Background(), "s3cret", domain.UserProfile{Name: "Ada"})
	require.NoError(t, err)

	var attached []bool
	h := g.Attach(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := SessionFromContext(r.Context())
		attached = append(attached, ok)
	}))

	for _, token := range []string{"", uuid.NewString(), session.Token.String()} {
		req := httptest.NewRequest(http.MethodPost, "/query", nil)
		if token != "" {
			req.Header.Set(SessionHeader, token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []bool{false, false, true}, attached)
}

func TestTokenFromRequestRejectsGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-uuid")
	_, ok := TokenFromRequest(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	_, ok = TokenFromRequest(req)
	assert.False(t, ok)
}

func TestSessionFromEmptyContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)
}
