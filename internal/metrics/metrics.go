package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Collector struct {
	reg *prometheus.Registry

	Polls        *prometheus.CounterVec // result label: ok|transport|payload
	PollDuration prometheus.Histogram
	LastSample   prometheus.Gauge // unix seconds

	StopIndex        prometheus.Gauge
	ReturnLegVisible prometheus.Gauge
	StopsAdvanced    prometheus.Counter
	LapResets        prometheus.Counter

	RouteRebuilds  prometheus.Counter
	SegmentResults *prometheus.CounterVec // result label: ok|failed|stale
	Animations     *prometheus.CounterVec // outcome label: completed|superseded|cancelled

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	PollInterval    prometheus.Gauge // seconds
	ProximityMeters prometheus.Gauge
}

func NewCollector(pollInterval time.Duration, proximityMeters float64) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_polls_total",
			Help: "Vehicle endpoint polls by result.",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_poll_duration_seconds",
			Help:    "Duration of a vehicle endpoint fetch.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		LastSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_last_sample_timestamp_seconds",
			Help: "Unix time of the last valid vehicle sample.",
		}),
		StopIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_stop_index",
			Help: "Index of the last stop the vehicle reached.",
		}),
		ReturnLegVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_return_leg_visible",
			Help: "1 if the return leg is drawn, 0 otherwise.",
		}),
		StopsAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_stop_advances_total",
			Help: "Total times the vehicle advanced to a later stop.",
		}),
		LapResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_lap_resets_total",
			Help: "Total laps completed back at the first stop.",
		}),
		RouteRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_route_rebuilds_total",
			Help: "Total rebuilds of the drawn route.",
		}),
		SegmentResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_route_segments_total",
			Help: "Route segment requests by result.",
		}, []string{"result"}),
		Animations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_animations_total",
			Help: "Marker animations by outcome.",
		}, []string{"outcome"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total widget commands published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total widget command publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a widget command.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_poll_interval_seconds",
			Help: "Poll interval in seconds.",
		}),
		ProximityMeters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_proximity_threshold_meters",
			Help: "Distance at which a stop counts as reached.",
		}),
	}

	reg.MustRegister(
		c.Polls, c.PollDuration, c.LastSample,
		c.StopIndex, c.ReturnLegVisible, c.StopsAdvanced, c.LapResets,
		c.RouteRebuilds, c.SegmentResults, c.Animations,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.PollInterval, c.ProximityMeters,
	)

	c.PollInterval.Set(pollInterval.Seconds())
	c.ProximityMeters.Set(proximityMeters)

	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
