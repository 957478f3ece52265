package main

import (
	"time"

	"bus-tracker/internal/metrics"
	"bus-tracker/internal/publisher"
	"bus-tracker/internal/route"
)

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool)        { p.c.NATSConnected.Set(boolGauge(b)) }

// trackerMetrics feeds the poller, renderer, animator and session into one
// Collector.
type trackerMetrics struct{ c *metrics.Collector }

func (t *trackerMetrics) PollObserve(result string, d time.Duration) {
	t.c.Polls.WithLabelValues(result).Inc()
	t.c.PollDuration.Observe(d.Seconds())
}

func (t *trackerMetrics) RouteRebuildInc()             { t.c.RouteRebuilds.Inc() }
func (t *trackerMetrics) SegmentResult(result string)  { t.c.SegmentResults.WithLabelValues(result).Inc() }
func (t *trackerMetrics) AnimationDone(outcome string) { t.c.Animations.WithLabelValues(outcome).Inc() }
func (t *trackerMetrics) SampleObserved(at time.Time)  { t.c.LastSample.Set(float64(at.Unix())) }

func (t *trackerMetrics) ProgressObserve(st route.State, res route.Result) {
	t.c.StopIndex.Set(float64(st.CurrentIndex))
	t.c.ReturnLegVisible.Set(boolGauge(st.ReturnLegVisible))
	if res.Advanced {
		t.c.StopsAdvanced.Inc()
	}
	if res.LapReset {
		t.c.LapResets.Inc()
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
