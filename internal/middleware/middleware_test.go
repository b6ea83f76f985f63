package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/metrics"
	"github.com/rpattn/streamgate/internal/source"

	"github.com/99designs/gqlgen/graphql"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type nopFetcher struct{}

func (nopFetcher) FetchByIDs(context.Context, domain.SourceTable, []string) ([]source.Row, error) {
	return nil, nil
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()

	h := LoggingMiddleware(zap.New(core), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http request", entry.Message)
	assert.Equal(t, int64(http.StatusTeapot), entry.ContextMap()["status"])
	assert.Equal(t, "/api/events", entry.ContextMap()["path"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "418")))
}

func TestRowLoaderMiddlewareAttachesLoader(t *testing.T) {
	resolve := func(string) (domain.SourceTable, bool) { return domain.SourceTable{}, false }

	var first, second any
	h := RowLoaderMiddleware(nopFetcher{}, resolve, time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if first == nil {
			first = RowLoaderFromContext(r.Context())
		} else {
			second = RowLoaderFromContext(r.Context())
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Nil(t, RowLoaderFromContext(context.Background()))
}

func TestResolverLoggerExtensionLogsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ext := NewResolverLoggerExtension(zap.New(core))
	assert.Equal(t, "ResolverLogger", ext.ExtensionName())
	assert.NoError(t, ext.Validate(nil))

	fieldCtx := func(object, name string) context.Context {
		return graphql.WithFieldContext(context.Background(), &graphql.FieldContext{
			Object: object,
			Field:  graphql.CollectedField{Field: &ast.Field{Name: name, Alias: name}},
		})
	}

	res, err := ext.InterceptField(fieldCtx("Query", "events"), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)

	boom := errors.New("boom")
	_, err = ext.InterceptField(fieldCtx("Event", "rawRow"), func(ctx context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "graphql resolver", first.Message)
	assert.Equal(t, "Query", first.ContextMap()["object"])
	assert.Equal(t, "events", first.ContextMap()["field"])

	failed := logs.All()[1]
	assert.Equal(t, "graphql resolver failed", failed.Message)
	assert.Equal(t, "rawRow", failed.ContextMap()["field"])
	assert.Equal(t, "boom", failed.ContextMap()["error"])
}
