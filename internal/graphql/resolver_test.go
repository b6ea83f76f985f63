package graphql

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/poller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaLoads(t *testing.T) {
	es, err := NewExecutableSchema(NewResolver(nil, nil, nil))
	require.NoError(t, err)

	schema := es.Schema()
	require.NotNil(t, schema.Query)
	require.NotNil(t, schema.Mutation)
	for _, name := range []string{"events", "latest", "poller", "sources", "session"} {
		assert.NotNil(t, schema.Query.Fields.ForName(name), name)
	}
	for _, name := range []string{"login", "logout", "clearHistory", "updatePoller"} {
		assert.NotNil(t, schema.Mutation.Fields.ForName(name), name)
	}
	assert.NotNil(t, schema.Types["Event"].Fields.ForName("rawRow"))
}

func TestToGraphEvent(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC)
	e := toGraphEvent(domain.NewEvent("order", "orders", "paid", domain.EventStatusError, at, "7"))

	assert.Equal(t, EventStatusError, e.Status)
	assert.Equal(t, float64(at.UnixMilli()), e.Timestamp)
	assert.Equal(t, "2024-01-01T00:00:02Z", e.Time)
	require.NotNil(t, e.RawID)
	assert.Equal(t, "7", *e.RawID)
}

func TestToGraphPollerStatus(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := toGraphPollerStatus(poller.Status{RateMs: 2000, Source: "events", LastTickAt: &at})

	assert.Equal(t, 2000, s.RateMs)
	require.NotNil(t, s.LastTickAt)
	assert.Equal(t, "2024-01-01T12:00:00Z", *s.LastTickAt)
	assert.Nil(t, s.LastError)
	assert.Nil(t, s.LastErrorAt)
}

func TestPollerInputFromArg(t *testing.T) {
	input, err := pollerInputFromArg(map[string]any{"rateMs": json.Number("1500"), "paused": true})
	require.NoError(t, err)
	require.NotNil(t, input.RateMs)
	assert.Equal(t, int64(1500), *input.RateMs)
	assert.Nil(t, input.Source)
	require.NotNil(t, input.Paused)
	assert.True(t, *input.Paused)

	input, err = pollerInputFromArg(map[string]any{"rateMs": int64(288230376151716744)})
	require.NoError(t, err)
	assert.Equal(t, int64(288230376151716744), *input.RateMs)

	_, err = pollerInputFromArg(map[string]any{"rateMs": 1.5})
	assert.Error(t, err)
	_, err = pollerInputFromArg("rateMs")
	assert.Error(t, err)
}

func TestResolversRequireSession(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	ctx := context.Background()

	_, err := r.Events(ctx, nil)
	assert.EqualError(t, err, "no active session")
	_, err = r.ClearHistory(ctx)
	assert.EqualError(t, err, "no active session")

	session, err := r.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}
