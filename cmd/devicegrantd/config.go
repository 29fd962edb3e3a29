package main

import "time"

// Config holds server configuration loaded from environment variables.
type Config struct {
	Port    int    `envconfig:"PORT" default:"8080"`
	BaseURL string `envconfig:"BASE_URL" required:"true"`

	// Store selects the persistence backend: sqlite, redis, or memory
	// (single process only).
	Store      string `envconfig:"STORE" default:"sqlite"`
	RedisURL   string `envconfig:"REDIS_URL"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"devicegrant.db"`

	// ClientsFile is a JSON array of registered OAuth clients.
	ClientsFile string `envconfig:"CLIENTS_FILE" required:"true"`

	CodeExpiry      time.Duration `envconfig:"CODE_EXPIRY" default:"10m"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	BackoffStep     time.Duration `envconfig:"BACKOFF_STEP" default:"5s"`
	MaxPollInterval time.Duration `envconfig:"MAX_POLL_INTERVAL" default:"60s"`

	TokenSecret     string        `envconfig:"TOKEN_SECRET" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"1h"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"720h"`

	CSRFSecret      string        `envconfig:"CSRF_SECRET" required:"true"`
	CSRFTokenExpiry time.Duration `envconfig:"CSRF_TOKEN_EXPIRY" default:"15m"`

	RateLimitPerSecond float64 `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// SubjectHeader carries the authenticated end-user identity set by the
	// fronting auth proxy.
	SubjectHeader string `envconfig:"SUBJECT_HEADER" default:"X-Forwarded-User"`

	// PurgeInterval and PurgeGrace drive the out-of-band cleanup of
	// expired records. Correctness never depends on the purge; expiry is
	// enforced lazily on read.
	PurgeInterval time.Duration `envconfig:"PURGE_INTERVAL" default:"10m"`
	PurgeGrace    time.Duration `envconfig:"PURGE_GRACE" default:"24h"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}
