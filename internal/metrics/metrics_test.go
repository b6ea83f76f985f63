package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreExposed(t *testing.T) {
	m := New()
	m.PollTicks.WithLabelValues("ok").Inc()
	m.EventsSurfaced.WithLabelValues("events").Add(3)
	m.FeedSize.Set(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollTicks.WithLabelValues("ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.EventsSurfaced.WithLabelValues("events")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `streamgate_poller_ticks_total{result="ok"} 1`)
	assert.Contains(t, string(body), `streamgate_feed_events 3`)
}
