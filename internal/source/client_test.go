package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpattn/streamgate/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBuildsPostgRESTQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "created_at": "2024-01-01T00:00:00Z"}, {"id": 2}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second)
	rows, err := c.Fetch(context.Background(), domain.SourceTable{Name: "events", TimestampColumn: "ts"}, 5, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, json.Number("1"), rows[0]["id"])

	require.NotNil(t, got)
	assert.Equal(t, "/rest/v1/events", got.URL.Path)
	assert.Equal(t, "*", got.URL.Query().Get("select"))
	assert.Equal(t, "ts.asc", got.URL.Query().Get("order"))
	assert.Equal(t, "5", got.URL.Query().Get("limit"))
	assert.Empty(t, got.URL.Query().Get("offset"))
	assert.Equal(t, "secret", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
}

func TestFetchSendsOffset(t *testing.T) {
	var offset string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset = r.URL.Query().Get("offset")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, "", time.Second).Fetch(context.Background(), domain.SourceTable{Name: "events"}, 10, 20)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, "20", offset)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"relation does not exist"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", time.Second).Fetch(context.Background(), domain.SourceTable{Name: "nope"}, 1, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "404")
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", time.Second).Fetch(context.Background(), domain.SourceTable{Name: "events"}, 1, 0)
	assert.Error(t, err)
}

func TestFetchByIDsQuotesValues(t *testing.T) {
	var filter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter = r.URL.Query().Get("uid")
		_, _ = w.Write([]byte(`[{"uid":"a"}]`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, "k", time.Second, WithHTTPClient(srv.Client())).FetchByIDs(
		context.Background(),
		domain.SourceTable{Name: "events", IDColumn: "uid"},
		[]string{"a", `b,"c"`},
	)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, `in.("a","b,\"c\"")`, filter)
}

func TestFetchByIDsEmptySkipsRequest(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", time.Second)
	rows, err := c.FetchByIDs(context.Background(), domain.SourceTable{Name: "events"}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
