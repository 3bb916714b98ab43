// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the agent gateway listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; required for the server and migrate commands.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// MediaBaseURL is the base URL of the external screenshot-hosting service.
	// Empty disables uploads; capture ingest then fails with a transient error.
	MediaBaseURL string `mapstructure:"MEDIA_BASE_URL"`
	// MediaAPIKey is the bearer token for the media service, if it requires one.
	MediaAPIKey string `mapstructure:"MEDIA_API_KEY"`

	// OCRServiceURL is the optional OCR collaborator endpoint. Empty means absent.
	OCRServiceURL string `mapstructure:"OCR_SERVICE_URL"`
	// AIAnalysisURL is the optional content-analysis collaborator endpoint. Empty means absent.
	AIAnalysisURL string `mapstructure:"AI_ANALYSIS_URL"`

	// ElasticsearchURL enables best-effort activity indexing for search when set.
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`

	// PolicyRulesFile is an optional YAML file merged over the built-in rule tables.
	PolicyRulesFile string `mapstructure:"POLICY_RULES_FILE"`

	// ActivityFlushInterval is how often buffered activity is flushed (e.g. "30s").
	ActivityFlushInterval string `mapstructure:"ACTIVITY_FLUSH_INTERVAL"`
	// ActivityBufferMax is the per-subject queue length that triggers an immediate flush.
	ActivityBufferMax int `mapstructure:"ACTIVITY_BUFFER_MAX"`
	// ViolationCooldown is the minimum interval between alerts for one subject (e.g. "60s").
	ViolationCooldown string `mapstructure:"VIOLATION_COOLDOWN"`

	// OTLPEndpoint enables OTel log/metric export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Telemetry (optional). When Kafka brokers are set, the gateway emits internal events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for internal telemetry events (default acp-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("MEDIA_BASE_URL", "")
	v.SetDefault("MEDIA_API_KEY", "")
	v.SetDefault("OCR_SERVICE_URL", "")
	v.SetDefault("AI_ANALYSIS_URL", "")
	v.SetDefault("ELASTICSEARCH_URL", "")
	v.SetDefault("POLICY_RULES_FILE", "")
	v.SetDefault("ACTIVITY_FLUSH_INTERVAL", "30s")
	v.SetDefault("ACTIVITY_BUFFER_MAX", 100)
	v.SetDefault("VIOLATION_COOLDOWN", "60s")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "acp-telemetry")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "acp-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.ActivityBufferMax <= 0 {
		return nil, errors.New("config: ACTIVITY_BUFFER_MAX must be positive")
	}

	return &cfg, nil
}

// FlushInterval parses ActivityFlushInterval as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) FlushInterval() time.Duration {
	d, err := time.ParseDuration(c.ActivityFlushInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Cooldown parses ViolationCooldown as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) Cooldown() time.Duration {
	d, err := time.ParseDuration(c.ViolationCooldown)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
