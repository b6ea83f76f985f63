package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rpattn/streamgate/internal/auth"
	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/middleware"
	"github.com/rpattn/streamgate/internal/poller"
	"github.com/rpattn/streamgate/internal/rowloader"
	"github.com/rpattn/streamgate/internal/source"

	"go.uber.org/zap"
)

type loginPayload struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type pollerUpdatePayload struct {
	RateMs *int64  `json:"rate_ms"`
	Source *string `json:"source"`
	Paused *bool   `json:"paused"`
}

type eventsResponse struct {
	Latest   *domain.Event  `json:"latest"`
	Events   []domain.Event `json:"events"`
	Capacity int            `json:"capacity"`
}

type sourcesResponse struct {
	Active  string               `json:"active"`
	Sources []domain.SourceTable `json:"sources"`
}

type rawRowResponse struct {
	EventID string     `json:"event_id"`
	Key     string     `json:"key"`
	Row     source.Row `json:"row,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	profile := domain.UserProfile{Name: payload.Name, Email: payload.Email, Role: payload.Role}
	session, err := s.gate.Login(r.Context(), payload.Key, profile)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidKey) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		s.logger.Error("login failed", zap.Error(err))
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, auth.ErrNoSession.Error(), http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, auth.ErrNoSession.Error(), http.StatusUnauthorized)
		return
	}
	if err := s.gate.Logout(r.Context(), session.Token); err != nil {
		s.logger.Error("logout failed", zap.Error(err))
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	resp := eventsResponse{
		Events:   s.feed.Snapshot(),
		Capacity: s.feed.Capacity(),
	}
	if latest, ok := s.feed.Latest(); ok {
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRawRow(w http.ResponseWriter, r *http.Request) {
	loader := middleware.RowLoaderFromContext(r.Context())
	if loader == nil {
		http.Error(w, "row loader unavailable", http.StatusInternalServerError)
		return
	}
	event, ok := s.feed.Find(r.PathValue("id"))
	if !ok {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	key := event.Key()
	if key == "" {
		http.Error(w, "event has no source row", http.StatusNotFound)
		return
	}

	row, err := loader.Load(r.Context(), key)
	if err != nil {
		if errors.Is(err, rowloader.ErrRowNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Warn("raw row lookup failed", zap.String("key", key), zap.Error(err))
		http.Error(w, "source lookup failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, rawRowResponse{EventID: event.ID.String(), Key: key, Row: row})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.poller.ClearHistory(r.Context()); err != nil {
		s.logger.Error("clear history failed", zap.Error(err))
		http.Error(w, "clear history failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPoller(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Status())
}

func (s *Server) handleUpdatePoller(w http.ResponseWriter, r *http.Request) {
	var payload pollerUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Source != nil {
		trimmed := strings.TrimSpace(*payload.Source)
		payload.Source = &trimmed
	}

	update := poller.Update{RateMs: payload.RateMs, Source: payload.Source, Paused: payload.Paused}
	if err := s.poller.Apply(update); err != nil {
		if errors.Is(err, poller.ErrRateOutOfRange) || errors.Is(err, poller.ErrUnknownSource) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("poller update failed", zap.Error(err))
		http.Error(w, "poller update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.poller.Status())
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sourcesResponse{
		Active:  s.poller.ActiveSource().Name,
		Sources: s.poller.Sources(),
	})
}
