// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database connections, upstream provider
// credentials, demo-tier quotas, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "sales-coach-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig holds settings for the upstream auth provider (GoTrue-style).
type AuthConfig struct {
	URL        string // SUPABASE_URL, base URL of the auth provider
	AnonKey    string // SUPABASE_ANON_KEY, apikey header for user lookups
	ServiceKey string // SUPABASE_SERVICE_KEY, privileged apikey (server-side)
	JWTSecret  string // SUPABASE_JWT_SECRET, enables local HS256 verification
	CookieName string // AUTH_COOKIE_NAME, session cookie carrying the token
}

// VoiceConfig holds settings for the conversational-voice provider.
type VoiceConfig struct {
	BaseURL string // VOICE_API_URL
	APIKey  string // ELEVENLABS_API_KEY; sent as the xi-api-key header
}

// LLMConfig holds settings for the analysis LLM provider.
type LLMConfig struct {
	BaseURL string // OPENAI_BASE_URL
	APIKey  string // OPENAI_API_KEY
	Model   string // OPENAI_MODEL, e.g. "gpt-4o"
}

// DemoConfig holds the fixed free-tier quota thresholds.
type DemoConfig struct {
	MaxSessions int     // DEMO_MAX_SESSIONS
	MaxMinutes  float64 // DEMO_MAX_MINUTES (cumulative, fractional)
}

// TranscriptConfig controls the transcript polling loop.
type TranscriptConfig struct {
	MaxRetries int           // TRANSCRIPT_RETRIES (extra attempts after the first)
	Backoff    time.Duration // TRANSCRIPT_BACKOFF between attempts
	RetryAfter time.Duration // hint returned to clients when still not ready
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 30s (LLM calls can be slow)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Database
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path (DB_DRIVER=sqlite)
	PostgresURI string // POSTGRES_URI (DB_DRIVER=postgres)

	// Upstream providers
	Auth  AuthConfig
	Voice VoiceConfig
	LLM   LLMConfig

	// Demo tier
	Demo DemoConfig

	// Transcript polling
	Transcript TranscriptConfig

	// EncryptionKey protects stored provider API keys (AES-256-GCM).
	EncryptionKey string

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Database
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "app.db"),
		PostgresURI: getenv("POSTGRES_URI", ""),

		// Upstream providers
		Auth: AuthConfig{
			URL:        strings.TrimRight(getenv("SUPABASE_URL", ""), "/"),
			AnonKey:    getenv("SUPABASE_ANON_KEY", ""),
			ServiceKey: getenv("SUPABASE_SERVICE_KEY", ""),
			JWTSecret:  getenv("SUPABASE_JWT_SECRET", ""),
			CookieName: getenv("AUTH_COOKIE_NAME", "sb-access-token"),
		},
		Voice: VoiceConfig{
			BaseURL: strings.TrimRight(getenv("VOICE_API_URL", "https://api.elevenlabs.io"), "/"),
			APIKey:  getenv("ELEVENLABS_API_KEY", ""),
		},
		LLM: LLMConfig{
			BaseURL: strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
			APIKey:  getenv("OPENAI_API_KEY", ""),
			Model:   getenv("OPENAI_MODEL", "gpt-4o"),
		},

		// Demo tier
		Demo: DemoConfig{
			MaxSessions: getint("DEMO_MAX_SESSIONS", 1),
			MaxMinutes:  getfloat("DEMO_MAX_MINUTES", 2.0),
		},

		// Transcript polling
		Transcript: TranscriptConfig{
			MaxRetries: getint("TRANSCRIPT_RETRIES", 3),
			Backoff:    getdur("TRANSCRIPT_BACKOFF", 2*time.Second),
			RetryAfter: getdur("TRANSCRIPT_RETRY_AFTER", 5*time.Second),
		},

		EncryptionKey: getenv("ENCRYPTION_KEY", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "sales-coach-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty when DB_DRIVER=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(cfg.PostgresURI) == "" {
			return cfg, errors.New("POSTGRES_URI must not be empty when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be sqlite or postgres")
	}
	if cfg.Demo.MaxSessions < 0 {
		return cfg, errors.New("DEMO_MAX_SESSIONS must be >= 0")
	}
	if cfg.Demo.MaxMinutes < 0 {
		return cfg, errors.New("DEMO_MAX_MINUTES must be >= 0")
	}
	if strings.TrimSpace(cfg.EncryptionKey) == "" {
		return cfg, errors.New("ENCRYPTION_KEY must not be empty")
	}
	if cfg.Transcript.MaxRetries < 0 {
		return cfg, errors.New("TRANSCRIPT_RETRIES must be >= 0")
	}
	if cfg.Transcript.Backoff < 0 {
		return cfg, errors.New("TRANSCRIPT_BACKOFF must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
