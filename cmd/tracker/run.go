package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bus-tracker/internal/admin"
	"bus-tracker/internal/animate"
	"bus-tracker/internal/config"
	"bus-tracker/internal/db"
	"bus-tracker/internal/mapview"
	"bus-tracker/internal/metrics"
	"bus-tracker/internal/poller"
	"bus-tracker/internal/prefs"
	"bus-tracker/internal/publisher"
	"bus-tracker/internal/render"
	"bus-tracker/internal/route"
	"bus-tracker/internal/routing"
	"bus-tracker/internal/session"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 3 * time.Second

func run(parent context.Context, cfg *config.Config) error {
	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stops, err := config.LoadStops(cfg.StopsFile)
	if err != nil {
		return err
	}

	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.PollInterval, cfg.ProximityMeters)
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	store, err := openPrefs(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var widget mapview.Map
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, "bus-tracker", cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Error().Err(err).Str("url", cfg.NATSURL).Msg("nats unavailable")
		widget = mapview.NewPlaceholder(err, cfg.MapCenter, cfg.MapZoom)
	} else {
		defer pub.Close()
		nm, err := mapview.NewNATSMap(pub, mapview.NATSOptions{
			SubjectPrefix: publisher.SubjectToken(cfg.NATSSubjectPrefix),
			Center:        cfg.MapCenter,
			Zoom:          cfg.MapZoom,
			Width:         cfg.MapWidth,
			Height:        cfg.MapHeight,
		})
		if err != nil {
			log.Error().Err(err).Msg(mapview.MapErrorText)
			widget = mapview.NewPlaceholder(err, cfg.MapCenter, cfg.MapZoom)
		} else {
			widget = nm
		}
	}

	var (
		pollM    poller.Metrics
		renderM  render.Metrics
		animM    animate.Metrics
		sessionM session.Metrics
	)
	if mcol != nil {
		tm := &trackerMetrics{c: mcol}
		pollM, renderM, animM, sessionM = tm, tm, tm, tm
	}

	sess := session.New(stops, session.Deps{
		Widget:        widget,
		Router:        routing.NewClient(cfg.RouterURL, cfg.RouterProfile, cfg.HTTPTimeout),
		Animator:      animate.New(cfg.AnimationFrames, animate.NewFrameTicker(cfg.FrameInterval), animM),
		Prefs:         store,
		Metrics:       sessionM,
		RenderMetrics: renderM,
	}, session.Options{
		Tracker: route.Options{
			ThresholdMeters: cfg.ProximityMeters,
			Return:          cfg.ReturnPolicy,
			Lap:             cfg.LapPolicy,
		},
		Center: cfg.MapCenter,
		Zoom:   cfg.MapZoom,
	})
	sess.Start(ctx)

	p := poller.New(cfg.VehicleEndpoint, cfg.PollInterval, cfg.HTTPTimeout, sess, pollM)
	p.Start(ctx)

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		if cfg.AdminPassword == "" {
			log.Warn().Msg("ADMIN_PASSWORD not set, stop editing disabled")
		}
		adminSrv = &http.Server{Addr: cfg.AdminAddr, Handler: admin.NewHandler(sess, cfg.AdminPassword)}
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("admin server error")
				cancel()
			}
		}()
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin api listening")
	}

	log.Info().
		Str("endpoint", cfg.VehicleEndpoint).
		Dur("interval", cfg.PollInterval).
		Int("stops", len(stops)).
		Msg("tracker started")

	// Block until context cancelled
	<-ctx.Done()

	p.Stop()
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if adminSrv != nil {
		_ = adminSrv.Shutdown(shutdownCtx)
	}
	sess.Close()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func openPrefs(ctx context.Context, cfg *config.Config) (prefs.Store, error) {
	switch cfg.PrefsBackend {
	case "redis":
		s, err := prefs.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("theme preference in redis")
		return s, nil
	case "postgres":
		dsn := cfg.DatabaseURL
		if cfg.PrefsDatabase != "" {
			var err error
			if dsn, err = db.WithDBName(dsn, cfg.PrefsDatabase); err != nil {
				return nil, err
			}
		}
		s, err := prefs.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("theme preference in postgres")
		return s, nil
	default:
		return prefs.NewMemoryStore(), nil
	}
}
