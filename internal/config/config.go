// Package config provides env-driven application configuration.
// Priority: environment > defaults. Values are normalized and validated
// once at load time.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adriatica/firewatch/internal/store"
)

// Environment variable names.
const (
	EnvListenAddr       = "FIREWATCH_LISTEN_ADDR"
	EnvBaseURL          = "FIREWATCH_BASE_URL"
	EnvMapURL           = "FIREWATCH_MAP_URL"
	EnvSecretKey        = "FIREWATCH_SECRET_KEY"
	EnvTelegramToken    = "FIREWATCH_TELEGRAM_TOKEN"
	EnvWebhookSecret    = "FIREWATCH_WEBHOOK_SECRET"
	EnvDBDriver         = "FIREWATCH_DB_DRIVER"
	EnvDBDSN            = "FIREWATCH_DB_DSN"
	EnvDeleteMode       = "FIREWATCH_DELETE_MODE"
	EnvPurgeInterval    = "FIREWATCH_PURGE_INTERVAL"
	EnvSessionTTL       = "FIREWATCH_SESSION_TTL"
	EnvRedisAddr        = "FIREWATCH_REDIS_ADDR"
	EnvRedisPassword    = "FIREWATCH_REDIS_PASSWORD"
	EnvRedisDB          = "FIREWATCH_REDIS_DB"
	EnvHotspotsURL      = "FIREWATCH_HOTSPOTS_URL"
	EnvHotspotsInterval = "FIREWATCH_HOTSPOTS_INTERVAL"
	EnvCenterLat        = "FIREWATCH_CENTER_LAT"
	EnvCenterLon        = "FIREWATCH_CENTER_LON"
	EnvCenterZoom       = "FIREWATCH_CENTER_ZOOM"
	EnvAllowedOrigins   = "FIREWATCH_ALLOWED_ORIGINS"
	EnvLogLevel         = "FIREWATCH_LOG_LEVEL"
	EnvLogFormat        = "FIREWATCH_LOG_FORMAT"
)

// DevSecretKey is the fallback HMAC secret. Deployments must override it.
const DevSecretKey = "dev-secret-change-me"

// Config holds the application configuration.
type Config struct {
	ListenAddr string

	// BaseURL is the public URL of this service; MapURL is the URL the
	// bot offers as "open the map" (defaults to BaseURL when unset or
	// not publicly reachable).
	BaseURL string
	MapURL  string

	SecretKey     string
	TelegramToken string
	// WebhookSecret is the unguessable path segment of the webhook
	// route.
	WebhookSecret string

	DBDriver   string
	DBDSN      string
	DeleteMode store.DeleteMode

	PurgeInterval time.Duration
	SessionTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HotspotsURL      string
	HotspotsInterval time.Duration

	CenterLat  float64
	CenterLon  float64
	CenterZoom int

	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		SecretKey:        DevSecretKey,
		DBDriver:         store.DriverSQLite,
		DBDSN:            "firewatch.db",
		DeleteMode:       store.DeleteSoft,
		PurgeInterval:    time.Minute,
		SessionTTL:       20 * time.Minute,
		HotspotsInterval: 15 * time.Minute,
		CenterLat:        42.179,
		CenterLon:        18.942,
		CenterZoom:       12,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load reads configuration from the environment on top of defaults and
// normalizes the result.
func Load() Config {
	cfg := Default()

	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv(EnvBaseURL))
	cfg.MapURL = strings.TrimSpace(os.Getenv(EnvMapURL))
	if v := os.Getenv(EnvSecretKey); v != "" {
		cfg.SecretKey = v
	}
	cfg.TelegramToken = strings.TrimSpace(os.Getenv(EnvTelegramToken))
	cfg.WebhookSecret = strings.TrimSpace(os.Getenv(EnvWebhookSecret))

	if v := os.Getenv(EnvDBDriver); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv(EnvDeleteMode); v != "" {
		cfg.DeleteMode = store.DeleteMode(v)
	}
	if d, ok := envDuration(EnvPurgeInterval); ok {
		cfg.PurgeInterval = d
	}
	if d, ok := envDuration(EnvSessionTTL); ok {
		cfg.SessionTTL = d
	}

	cfg.RedisAddr = os.Getenv(EnvRedisAddr)
	cfg.RedisPassword = os.Getenv(EnvRedisPassword)
	if v := os.Getenv(EnvRedisDB); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}

	cfg.HotspotsURL = strings.TrimSpace(os.Getenv(EnvHotspotsURL))
	if d, ok := envDuration(EnvHotspotsInterval); ok {
		cfg.HotspotsInterval = d
	}

	if v := os.Getenv(EnvCenterLat); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CenterLat = f
		}
	}
	if v := os.Getenv(EnvCenterLon); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CenterLon = f
		}
	}
	if v := os.Getenv(EnvCenterZoom); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CenterZoom = n
		}
	}

	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}

	return Normalize(cfg)
}

// Normalize validates and repairs config values.
func Normalize(cfg Config) Config {
	defaults := Default()

	if cfg.DBDriver != store.DriverSQLite && cfg.DBDriver != store.DriverPostgres {
		cfg.DBDriver = defaults.DBDriver
	}
	if cfg.DeleteMode != store.DeleteSoft && cfg.DeleteMode != store.DeleteHard {
		cfg.DeleteMode = defaults.DeleteMode
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = defaults.PurgeInterval
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}
	if cfg.HotspotsInterval < time.Minute {
		cfg.HotspotsInterval = defaults.HotspotsInterval
	}
	if cfg.CenterZoom < 1 || cfg.CenterZoom > 19 {
		cfg.CenterZoom = defaults.CenterZoom
	}

	// The map button must point at something reachable from a phone.
	if !IsPublicHTTP(cfg.MapURL) && IsPublicHTTP(cfg.BaseURL) {
		cfg.MapURL = cfg.BaseURL
	}

	return cfg
}

// UsingDevSecret reports whether the HMAC secret is still the built-in
// development fallback.
func (c *Config) UsingDevSecret() bool {
	return c.SecretKey == DevSecretKey
}

// IsPublicHTTP reports whether raw is an http(s) URL with a non-loopback
// host.
func IsPublicHTTP(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "" && host != "localhost" && host != "127.0.0.1" && host != "::1"
}

// envDuration parses a duration env var ("90s", "15m").
func envDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
