package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rpattn/streamgate/internal/metrics"

	"github.com/99designs/gqlgen/graphql"
	"go.uber.org/zap"
)

// ResolverLoggerExtension logs resolver execution times
type ResolverLoggerExtension struct {
	logger *zap.Logger
}

// NewResolverLoggerExtension logs through logger, or discards when it is nil.
func NewResolverLoggerExtension(logger *zap.Logger) *ResolverLoggerExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverLoggerExtension{logger: logger}
}

// ExtensionName implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) ExtensionName() string {
	return "ResolverLogger"
}

// Validate implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

// InterceptField logs each resolver duration and errors
func (r *ResolverLoggerExtension) InterceptField(ctx context.Context, next graphql.Resolver) (res any, err error) {
	start := time.Now()
	res, err = next(ctx)
	duration := time.Since(start)

	fc := graphql.GetFieldContext(ctx)
	if fc == nil {
		return res, err
	}
	fields := []zap.Field{
		zap.String("object", fc.Object),
		zap.String("field", fc.Field.Name),
		zap.Duration("duration", duration),
	}
	if err != nil {
		r.logger.Warn("graphql resolver failed", append(fields, zap.Error(err))...)
		return res, err
	}
	r.logger.Debug("graphql resolver", fields...)
	return res, err
}

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs each request and counts it by method and status.
func LoggingMiddleware(logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			if m != nil {
				m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()
			}
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", duration),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}
