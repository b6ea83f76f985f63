// Package graphql serves the dashboard over a GraphQL endpoint alongside the
// REST routes.
package graphql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/streamgate/internal/auth"
	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/feed"
	"github.com/rpattn/streamgate/internal/middleware"
	"github.com/rpattn/streamgate/internal/poller"
	"github.com/rpattn/streamgate/internal/source"
)

// Resolver handles GraphQL queries and mutations
type Resolver struct {
	gate   *auth.Gate
	poller *poller.Poller
	feed   *feed.Feed
}

// NewResolver creates a new GraphQL resolver
func NewResolver(gate *auth.Gate, p *poller.Poller, f *feed.Feed) *Resolver {
	return &Resolver{gate: gate, poller: p, feed: f}
}

func requireSession(ctx context.Context) (domain.Session, error) {
	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		return domain.Session{}, auth.ErrNoSession
	}
	return session, nil
}

// Query resolvers

// Events returns the feed newest first, optionally truncated to limit.
func (r *Resolver) Events(ctx context.Context, limit *int) ([]*Event, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	if limit != nil && *limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}

	events := r.feed.Snapshot()
	if limit != nil && *limit < len(events) {
		events = events[:*limit]
	}
	result := make([]*Event, len(events))
	for i, e := range events {
		result[i] = toGraphEvent(e)
	}
	return result, nil
}

// Latest returns the most recently surfaced event, or nil for an empty feed.
func (r *Resolver) Latest(ctx context.Context) (*Event, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	latest, ok := r.feed.Latest()
	if !ok {
		return nil, nil
	}
	return toGraphEvent(latest), nil
}

// Poller returns the loop status.
func (r *Resolver) Poller(ctx context.Context) (*PollerStatus, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	return toGraphPollerStatus(r.poller.Status()), nil
}

// Sources lists the configured tables and flags the active one.
func (r *Resolver) Sources(ctx context.Context) ([]*SourceTable, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	active := r.poller.ActiveSource().Name
	tables := r.poller.Sources()
	result := make([]*SourceTable, len(tables))
	for i, t := range tables {
		result[i] = &SourceTable{
			Name:            t.Name,
			Label:           t.Label,
			TimestampColumn: t.TimestampColumn,
			IDColumn:        t.IDColumn,
			Active:          t.Name == active,
		}
	}
	return result, nil
}

// Session returns the caller's session, or nil when the request carries none.
func (r *Resolver) Session(ctx context.Context) (*Session, error) {
	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return toGraphSession(session), nil
}

// Event field resolvers

// EventRawRow loads the source row behind an event through the request's row loader.
func (r *Resolver) EventRawRow(ctx context.Context, obj *Event) (source.Row, error) {
	if obj.RawID == nil {
		return nil, nil
	}
	loader := middleware.RowLoaderFromContext(ctx)
	if loader == nil {
		return nil, fmt.Errorf("row loader unavailable")
	}
	row, err := loader.Load(ctx, domain.CompositeKey(obj.Source, *obj.RawID))
	if err != nil {
		return nil, fmt.Errorf("failed to load source row: %w", err)
	}
	return row, nil
}

// Mutation resolvers

// Login exchanges the access key for a session.
func (r *Resolver) Login(ctx context.Context, input LoginInput) (*Session, error) {
	profile := domain.UserProfile{
		Name:  deref(input.Name),
		Email: deref(input.Email),
		Role:  deref(input.Role),
	}
	session, err := r.gate.Login(ctx, input.Key, profile)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidKey) {
			return nil, err
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return toGraphSession(session), nil
}

// Logout ends the caller's session.
func (r *Resolver) Logout(ctx context.Context) (bool, error) {
	session, err := requireSession(ctx)
	if err != nil {
		return false, err
	}
	if err := r.gate.Logout(ctx, session.Token); err != nil {
		return false, err
	}
	return true, nil
}

// ClearHistory empties the feed and the processed-key set.
func (r *Resolver) ClearHistory(ctx context.Context) (bool, error) {
	if _, err := requireSession(ctx); err != nil {
		return false, err
	}
	if err := r.poller.ClearHistory(ctx); err != nil {
		return false, fmt.Errorf("failed to clear history: %w", err)
	}
	return true, nil
}

// UpdatePoller applies a partial reconfiguration. Nothing changes when any field is invalid.
func (r *Resolver) UpdatePoller(ctx context.Context, input PollerInput) (*PollerStatus, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	if input.Source != nil {
		trimmed := strings.TrimSpace(*input.Source)
		input.Source = &trimmed
	}
	update := poller.Update{RateMs: input.RateMs, Source: input.Source, Paused: input.Paused}
	if err := r.poller.Apply(update); err != nil {
		return nil, err
	}
	return toGraphPollerStatus(r.poller.Status()), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
