// Package config loads and validates all environment variables at startup.
// Every other package receives typed values; outside this package only the
// process entrypoint reads ENV directly, to choose its log format.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig is one named, read-only PostgreSQL pool plus the security
// policy the validator enforces for it. Multiple databases can carry
// different deny-lists even when served by the same process.
type DatabaseConfig struct {
	Name               string
	DSN                string
	SchemaSnapshotPath string // JSON DatabaseSchema snapshot, loaded at startup
	BlockedTables      []string
	BlockedColumns     []string
	AllowExplain       bool
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
}

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ──────────────────────────────────────────────────────────
	Port string // default "8080"
	Env  string // "development" | "staging" | "production"

	// ── Databases ───────────────────────────────────────────────────────
	Databases map[string]DatabaseConfig

	// ── Anthropic ───────────────────────────────────────────────────────
	AnthropicAPIKey string
	AnthropicModel  string // default "claude-opus-4-6"

	// ── DeepSeek ────────────────────────────────────────────────────────
	// Optional. When set alongside ANTHROPIC_API_KEY, DeepSeek is used as
	// the fallback if the Anthropic call fails; when set alone, DeepSeek is
	// the only provider. If DEEPSEEK_API_KEY is empty, no fallback is
	// configured.
	DeepSeekAPIKey string
	DeepSeekModel  string // default "deepseek-chat"

	// ── Result validation ───────────────────────────────────────────────
	ResultValidationEnabled bool
	ConfidenceThreshold     int // default 70
	SampleRows              int // default 20

	// ── Resilience ──────────────────────────────────────────────────────
	MaxRetries              int           // default 2
	RetryDelay              time.Duration // default 500ms
	BackoffFactor           float64       // default 2.0
	CircuitBreakerThreshold int           // default 5
	CircuitBreakerTimeout   time.Duration // default 30s
	LLMConcurrency          int64         // default 10
	QueryConcurrency        int64         // default 20
	LLMCallTimeout          time.Duration // default 30s
	DBCallTimeout           time.Duration // default 15s
}

// Load reads all environment variables and returns a validated Config.
// It automatically loads a .env file from the working directory when
// present, so plain `go run ./cmd/queryservice` works in development
// without any wrapper. Real environment variables always take precedence
// over .env values.
func Load() (*Config, error) {
	loadDotEnv(".env")

	c := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		AnthropicAPIKey:         os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:          getEnv("ANTHROPIC_MODEL", "claude-opus-4-6"),
		DeepSeekAPIKey:          os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:           getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		ResultValidationEnabled: getEnvAsBool("RESULT_VALIDATION_ENABLED", true),
		ConfidenceThreshold:     getEnvAsInt("CONFIDENCE_THRESHOLD", 70),
		SampleRows:              getEnvAsInt("SAMPLE_ROWS", 20),
		MaxRetries:              getEnvAsInt("MAX_RETRIES", 2),
		RetryDelay:              getEnvAsDuration("RETRY_DELAY", 500*time.Millisecond),
		BackoffFactor:           getEnvAsFloat("BACKOFF_FACTOR", 2.0),
		CircuitBreakerThreshold: getEnvAsInt("CIRCUIT_BREAKER_THRESHOLD", 5),
		CircuitBreakerTimeout:   getEnvAsDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
		LLMConcurrency:          int64(getEnvAsInt("LLM_CONCURRENCY", 10)),
		QueryConcurrency:        int64(getEnvAsInt("QUERY_CONCURRENCY", 20)),
		LLMCallTimeout:          getEnvAsDuration("LLM_CALL_TIMEOUT", 30*time.Second),
		DBCallTimeout:           getEnvAsDuration("DB_CALL_TIMEOUT", 15*time.Second),
	}

	dbs, err := loadDatabases()
	if err != nil {
		return nil, err
	}
	c.Databases = dbs

	return c, c.validate()
}

// loadDatabases reads QUERYSERVICE_DATABASES as a comma-separated list of
// names, then reads DB_<NAME>_* variables for each one. Database names are
// upper-cased and have non-alphanumeric characters replaced with "_" to
// form the env var prefix.
func loadDatabases() (map[string]DatabaseConfig, error) {
	names := splitCSV(os.Getenv("QUERYSERVICE_DATABASES"))
	dbs := make(map[string]DatabaseConfig, len(names))

	for _, name := range names {
		prefix := "DB_" + envKey(name) + "_"
		dbs[name] = DatabaseConfig{
			Name:               name,
			DSN:                os.Getenv(prefix + "DSN"),
			SchemaSnapshotPath: os.Getenv(prefix + "SCHEMA_SNAPSHOT"),
			BlockedTables:      splitCSV(os.Getenv(prefix + "BLOCKED_TABLES")),
			BlockedColumns:     splitCSV(os.Getenv(prefix + "BLOCKED_COLUMNS")),
			AllowExplain:       getEnvAsBool(prefix+"ALLOW_EXPLAIN", false),
			MaxOpenConns:       getEnvAsInt(prefix+"MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvAsInt(prefix+"MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:    getEnvAsDuration(prefix+"CONN_MAX_LIFETIME", 30*time.Minute),
		}
	}

	return dbs, nil
}

func (c *Config) validate() error {
	var errs []error

	if len(c.Databases) == 0 {
		errs = append(errs, fmt.Errorf("QUERYSERVICE_DATABASES must name at least one database"))
	}
	for name, db := range c.Databases {
		if db.DSN == "" {
			errs = append(errs, fmt.Errorf("database %q: DB_%s_DSN is required", name, envKey(name)))
		}
	}

	// At least one LLM provider must be configured.
	if c.AnthropicAPIKey == "" && c.DeepSeekAPIKey == "" {
		errs = append(errs, fmt.Errorf("at least one of ANTHROPIC_API_KEY or DEEPSEEK_API_KEY must be set"))
	}

	return errors.Join(errs...)
}

// ─── DOT-ENV LOADER ─────────────────────────────────────────────────────

// loadDotEnv reads key=value pairs from path and sets them in the
// environment, but only for keys that are not already set. This means real
// env vars (e.g. from a container orchestrator or CI) always win over the
// file. Missing file, blank lines, and #-comments are all silently ignored.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // file absent — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		// Strip optional surrounding quotes: KEY="value" or KEY='value'
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// ─── HELPERS ────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envKey upper-cases name and replaces any character outside [A-Z0-9_]
// with "_", so a database name like "billing-eu" becomes "BILLING_EU" for
// use in an env var prefix.
func envKey(name string) string {
	upper := strings.ToUpper(name)
	var sb strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
