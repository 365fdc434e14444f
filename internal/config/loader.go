package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "switchboard.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SWITCHBOARD_PORT")
	setString(&cfg.Server.CORSOrigin, "SWITCHBOARD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SWITCHBOARD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SWITCHBOARD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SWITCHBOARD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SWITCHBOARD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SWITCHBOARD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "SWITCHBOARD_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.SessionTimeout, "SWITCHBOARD_SESSION_TIMEOUT")
	setDuration(&cfg.Cache.SweepInterval, "SWITCHBOARD_CACHE_SWEEP_INTERVAL")
	setInt(&cfg.Cache.MessageCap, "SWITCHBOARD_CONTEXT_MESSAGE_CAP")
	setBool(&cfg.Cache.Persist, "SWITCHBOARD_CONTEXT_PERSIST")
	setInt(&cfg.Rate.MessagesPerWindow, "SWITCHBOARD_RATE_MESSAGES")
	setInt(&cfg.Rate.OutboundPerWindow, "SWITCHBOARD_RATE_OUTBOUND")
	setDuration(&cfg.Rate.Window, "SWITCHBOARD_RATE_WINDOW")
	setDuration(&cfg.Rate.SweepInterval, "SWITCHBOARD_RATE_SWEEP_INTERVAL")
	setFloat64(&cfg.Rate.RequestsPerSecond, "SWITCHBOARD_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SWITCHBOARD_RATE_BURST")
	setFloat64(&cfg.Pipeline.ConfidenceThreshold, "SWITCHBOARD_CONFIDENCE_THRESHOLD")
	setInt(&cfg.Pipeline.FailedAttemptLimit, "SWITCHBOARD_FAILED_ATTEMPT_LIMIT")
	setFloat64(&cfg.Pipeline.ComplexityMedium, "SWITCHBOARD_COMPLEXITY_MEDIUM")
	setFloat64(&cfg.Pipeline.ComplexityHigh, "SWITCHBOARD_COMPLEXITY_HIGH")
	setDuration(&cfg.Escalation.ResolvedRetention, "SWITCHBOARD_ESCALATION_RETENTION")
	setDuration(&cfg.Escalation.SweepInterval, "SWITCHBOARD_ESCALATION_SWEEP_INTERVAL")
	setDuration(&cfg.Takeover.EndedGrace, "SWITCHBOARD_TAKEOVER_GRACE")
	setDuration(&cfg.Takeover.SweepInterval, "SWITCHBOARD_TAKEOVER_SWEEP_INTERVAL")
	setString(&cfg.WhatsApp.APIURL, "SWITCHBOARD_WA_API_URL")
	setString(&cfg.WhatsApp.PhoneID, "SWITCHBOARD_WA_PHONE_ID")
	setString(&cfg.WhatsApp.AccessToken, "SWITCHBOARD_WA_ACCESS_TOKEN")
	setDuration(&cfg.WhatsApp.Timeout, "SWITCHBOARD_WA_TIMEOUT")
	setBool(&cfg.Auth.Enabled, "SWITCHBOARD_AUTH_ENABLED")
	setString(&cfg.Auth.TokenHash, "SWITCHBOARD_AUTH_TOKEN_HASH")
	setInt(&cfg.Breaker.MaxFailures, "SWITCHBOARD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SWITCHBOARD_BREAKER_TIMEOUT")
	setString(&cfg.Logging.Level, "SWITCHBOARD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SWITCHBOARD_LOG_SERVICE")
	setBool(&cfg.Telemetry.Enabled, "SWITCHBOARD_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Cache.MessageCap < 1 {
		return errors.New("cache.message_cap must be >= 1")
	}
	if cfg.Rate.MessagesPerWindow < 1 || cfg.Rate.OutboundPerWindow < 1 {
		return errors.New("rate ceilings must be >= 1")
	}
	if cfg.Rate.Window <= 0 {
		return errors.New("rate.window must be positive")
	}
	if cfg.Pipeline.ConfidenceThreshold < 0 || cfg.Pipeline.ConfidenceThreshold > 1 {
		return errors.New("pipeline.confidence_threshold must be in [0,1]")
	}
	if cfg.Pipeline.FailedAttemptLimit < 1 {
		return errors.New("pipeline.failed_attempt_limit must be >= 1")
	}
	if cfg.Pipeline.ComplexityHigh < cfg.Pipeline.ComplexityMedium {
		return errors.New("pipeline.complexity_high must be >= complexity_medium")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Auth.Enabled && cfg.Auth.TokenHash == "" {
		return errors.New("auth.token_hash is required when auth is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
