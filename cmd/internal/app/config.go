package app

import "time"

// Config contains all runtime configuration loaded from environment
// variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins []string
	CORSMaxAgeSeconds  int

	// Janitor policy: accounts logged out longer than this are soft
	// deleted, and dead refresh records are purged, once per sweep.
	JanitorInterval          time.Duration
	AccountDeleteAfterLogout time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("RIPPLE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("RIPPLE_LOG_LEVEL", "info"),
		LogFormat: EnvString("RIPPLE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("RIPPLE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("RIPPLE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("RIPPLE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("RIPPLE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("RIPPLE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("RIPPLE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("RIPPLE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("RIPPLE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("RIPPLE_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins: EnvCSV("RIPPLE_CORS_ALLOWED_ORIGINS", ""),
		CORSMaxAgeSeconds:  EnvInt("RIPPLE_CORS_MAX_AGE_SECONDS", 600),

		JanitorInterval:          EnvDuration("RIPPLE_JANITOR_INTERVAL", 24*time.Hour),
		AccountDeleteAfterLogout: time.Duration(EnvInt("RIPPLE_ACCOUNT_DELETE_AFTER_LOGOUT_DAYS", 180)) * 24 * time.Hour,
	}
}
