package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector(t *testing.T) {
	c := NewCollector(5*time.Second, 100)

	c.Polls.WithLabelValues("ok").Inc()
	c.Polls.WithLabelValues("payload").Inc()
	c.SegmentResults.WithLabelValues("stale").Add(3)
	c.StopIndex.Set(2)

	body := scrape(t, c)
	assert.Contains(t, body, `tracker_polls_total{result="ok"} 1`)
	assert.Contains(t, body, `tracker_polls_total{result="payload"} 1`)
	assert.Contains(t, body, `tracker_route_segments_total{result="stale"} 3`)
	assert.Contains(t, body, "tracker_poll_interval_seconds 5")
	assert.Contains(t, body, "tracker_proximity_threshold_meters 100")
	assert.Contains(t, body, "tracker_stop_index 2")
}
