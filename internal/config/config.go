package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/route"

	"github.com/joho/godotenv"
)

const DefaultVehicleEndpoint = "http://16.171.19.250:5000/get-vertices"

type Config struct {
	VehicleEndpoint string
	PollInterval    time.Duration
	HTTPTimeout     time.Duration

	ProximityMeters float64
	ReturnPolicy    route.ReturnPolicy
	LapPolicy       route.LapPolicy
	StopsFile       string

	AnimationFrames int
	FrameInterval   time.Duration

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	RouterURL     string
	RouterProfile string

	MapCenter geo.Point
	MapZoom   int
	MapWidth  int
	MapHeight int

	AdminAddr     string
	AdminPassword string
	MetricsAddr   string

	PrefsBackend  string // memory|redis|postgres
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	PrefsDatabase string

	LogFormat string // console|json
	Debug     bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	cfg.VehicleEndpoint = getenvDefault("VEHICLE_ENDPOINT", DefaultVehicleEndpoint)

	if cfg.PollInterval, err = millis("POLL_INTERVAL_MS", 5000); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = millis("HTTP_TIMEOUT_MS", 4000); err != nil {
		return nil, err
	}
	if cfg.FrameInterval, err = millis("FRAME_INTERVAL_MS", 16); err != nil {
		return nil, err
	}

	cfg.ProximityMeters = route.DefaultThresholdMeters
	if v := os.Getenv("PROXIMITY_METERS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid PROXIMITY_METERS: %q", v)
		}
		cfg.ProximityMeters = f
	}

	if cfg.AnimationFrames, err = positiveInt("ANIMATION_FRAMES", 50); err != nil {
		return nil, err
	}

	if cfg.ReturnPolicy, err = route.ParseReturnPolicy(os.Getenv("RETURN_LEG_POLICY")); err != nil {
		return nil, fmt.Errorf("invalid RETURN_LEG_POLICY: %w", err)
	}
	if cfg.LapPolicy, err = route.ParseLapPolicy(os.Getenv("LAP_POLICY")); err != nil {
		return nil, fmt.Errorf("invalid LAP_POLICY: %w", err)
	}
	cfg.StopsFile = os.Getenv("STOPS_FILE")

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "tracker")
	cfg.LogNATSSubjects = truthy(os.Getenv("LOG_NATS_SUBJECTS"))

	cfg.RouterURL = getenvDefault("ROUTER_URL", "https://router.project-osrm.org")
	cfg.RouterProfile = getenvDefault("ROUTER_PROFILE", "driving")

	cfg.MapCenter = geo.Point{Lat: 31.7209, Lng: 72.9780}
	if cfg.MapCenter.Lat, err = floatEnv("MAP_CENTER_LAT", cfg.MapCenter.Lat); err != nil {
		return nil, err
	}
	if cfg.MapCenter.Lng, err = floatEnv("MAP_CENTER_LNG", cfg.MapCenter.Lng); err != nil {
		return nil, err
	}
	if !geo.Valid(cfg.MapCenter) {
		return nil, fmt.Errorf("invalid map center: %s", cfg.MapCenter)
	}
	if cfg.MapZoom, err = positiveInt("MAP_ZOOM", 12); err != nil {
		return nil, err
	}
	if cfg.MapWidth, err = positiveInt("MAP_WIDTH", 1280); err != nil {
		return nil, err
	}
	if cfg.MapHeight, err = positiveInt("MAP_HEIGHT", 720); err != nil {
		return nil, err
	}

	// Admin API listen address. Empty disables the admin server.
	cfg.AdminAddr = getenvDefault("ADMIN_ADDR", ":8080")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.PrefsBackend = strings.ToLower(getenvDefault("PREFS_BACKEND", "memory"))
	switch cfg.PrefsBackend {
	case "memory":
	case "redis":
		cfg.RedisAddr = getenvDefault("REDIS_ADDR", "127.0.0.1:6379")
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
		if cfg.RedisDB, err = nonNegativeInt("REDIS_DB", 0); err != nil {
			return nil, err
		}
	case "postgres":
		if cfg.DatabaseURL, err = databaseURL(); err != nil {
			return nil, err
		}
		cfg.PrefsDatabase = os.Getenv("PREFS_DATABASE")
	default:
		return nil, fmt.Errorf("invalid PREFS_BACKEND: %q", cfg.PrefsBackend)
	}

	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "console"))
	cfg.Debug = truthy(os.Getenv("DEBUG"))

	return cfg, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set for PREFS_BACKEND=postgres")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func millis(k string, def int) (time.Duration, error) {
	ms, err := positiveInt(k, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func positiveInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func nonNegativeInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func floatEnv(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
