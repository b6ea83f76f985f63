// Package api exposes the poller, feed and session gate over HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rpattn/streamgate/internal/auth"
	"github.com/rpattn/streamgate/internal/export"
	"github.com/rpattn/streamgate/internal/feed"
	"github.com/rpattn/streamgate/internal/graphql"
	"github.com/rpattn/streamgate/internal/metrics"
	"github.com/rpattn/streamgate/internal/middleware"
	"github.com/rpattn/streamgate/internal/poller"
	"github.com/rpattn/streamgate/internal/rowloader"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Options wires the server's collaborators.
type Options struct {
	Gate           *auth.Gate
	Poller         *poller.Poller
	Feed           *feed.Feed
	Exporter       *export.Service
	RowFetcher     rowloader.RowFetcher
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
	LoaderWait     time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	gate     *auth.Gate
	poller   *poller.Poller
	feed     *feed.Feed
	exporter *export.Service
	fetcher  rowloader.RowFetcher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	origins  []string
	wait     time.Duration
	graphql  http.Handler
}

// NewServer validates opts and builds a server.
func NewServer(opts Options) (*Server, error) {
	if opts.Gate == nil || opts.Poller == nil || opts.Feed == nil || opts.RowFetcher == nil {
		return nil, fmt.Errorf("api server requires a gate, a poller, a feed and a row fetcher")
	}
	if opts.Exporter == nil {
		opts.Exporter = export.NewService(opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	gqlHandler, err := graphql.NewHandler(graphql.NewResolver(opts.Gate, opts.Poller, opts.Feed), opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		graphql:  gqlHandler,
		gate:     opts.Gate,
		poller:   opts.Poller,
		feed:     opts.Feed,
		exporter: opts.Exporter,
		fetcher:  opts.RowFetcher,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		origins:  opts.AllowedOrigins,
		wait:     opts.LoaderWait,
	}, nil
}

// Handler returns the REST routes and the GraphQL endpoint wrapped in CORS and
// request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	protected := s.gate.Middleware
	withRows := middleware.RowLoaderMiddleware(s.fetcher, s.poller.Table, s.wait)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/session", s.handleLogin)
	mux.Handle("GET /api/session", protected(http.HandlerFunc(s.handleGetSession)))
	mux.Handle("DELETE /api/session", protected(http.HandlerFunc(s.handleLogout)))

	mux.Handle("GET /api/events", protected(http.HandlerFunc(s.handleListEvents)))
	mux.Handle("GET /api/events/{id}/raw", protected(withRows(http.HandlerFunc(s.handleRawRow))))

	mux.Handle("DELETE /api/history", protected(http.HandlerFunc(s.handleClearHistory)))
	mux.Handle("GET /api/history/export", protected(export.NewHTTPHandler(s.exporter, s.feed, s.logger)))

	mux.Handle("GET /api/poller", protected(http.HandlerFunc(s.handleGetPoller)))
	mux.Handle("PUT /api/poller", protected(http.HandlerFunc(s.handleUpdatePoller)))
	mux.Handle("GET /api/sources", protected(http.HandlerFunc(s.handleListSources)))

	// GraphQL resolvers check the session themselves so login works unauthenticated
	mux.Handle("/query", s.gate.Attach(withRows(s.graphql)))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", auth.SessionHeader},
	})

	return corsHandler.Handler(middleware.LoggingMiddleware(s.logger, s.metrics)(mux))
}
