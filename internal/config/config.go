package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Logging.
	LogLevel slog.Level

	// Scoring.
	RulesFile        string // optional path to an operator rules YAML
	PromptTemplate   string // optional path overriding the embedded generation prompt
	CritiqueTemplate string // optional path overriding the embedded critic prompt

	// Score sinks.
	AuditLog    string // path to NDJSON score log file
	DatabaseURL string // optional; enables the postgres score store

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	LogLevel         *string
	RulesFile        *string
	PromptTemplate   *string
	CritiqueTemplate *string
	AuditLog         *string
	DatabaseURL      *string
	OTelEnabled      bool

	// Connection pool overrides.
	PoolMaxConns *int32
	PoolMinConns *int32
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		LogLevel:            slog.LevelInfo,
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	cfg.RulesFile = os.Getenv("RULES_FILE")
	cfg.PromptTemplate = os.Getenv("PROMPT_TEMPLATE")
	cfg.CritiqueTemplate = os.Getenv("CRITIQUE_TEMPLATE")
	cfg.AuditLog = os.Getenv("AUDIT_LOG")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return loadPoolEnvVars(cfg)
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	var err error
	if cfg.PoolMaxConns, err = envInt32("POOL_MAX_CONNS", cfg.PoolMaxConns, 1); err != nil {
		return err
	}
	if cfg.PoolMinConns, err = envInt32("POOL_MIN_CONNS", cfg.PoolMinConns, 0); err != nil {
		return err
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: must be a positive duration", v)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// envInt32 parses the variable name as an int32 no smaller than lowest.
// An unset variable keeps current.
func envInt32(name string, current, lowest int32) (int32, error) {
	v := os.Getenv(name)
	if v == "" {
		return current, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || int32(n) < lowest {
		return 0, fmt.Errorf("invalid %s value %q: must be an integer >= %d", name, v, lowest)
	}
	return int32(n), nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	setString(&cfg.RulesFile, o.RulesFile)
	setString(&cfg.PromptTemplate, o.PromptTemplate)
	setString(&cfg.CritiqueTemplate, o.CritiqueTemplate)
	setString(&cfg.AuditLog, o.AuditLog)
	setString(&cfg.DatabaseURL, o.DatabaseURL)

	for _, p := range []struct {
		flag   string
		v      *int32
		lowest int32
		dst    *int32
	}{
		{"--pool-max-conns", o.PoolMaxConns, 1, &cfg.PoolMaxConns},
		{"--pool-min-conns", o.PoolMinConns, 0, &cfg.PoolMinConns},
	} {
		if p.v == nil {
			continue
		}
		if *p.v < p.lowest {
			return fmt.Errorf("invalid %s value %d: must be >= %d", p.flag, *p.v, p.lowest)
		}
		*p.dst = *p.v
	}

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}
	if cfg.DatabaseURL != "" && !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		return fmt.Errorf("invalid DATABASE_URL: must start with postgres:// or postgresql://")
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
