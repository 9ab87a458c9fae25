package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rhcarvalho/relay/internal/scrub"
	errors "github.com/rhcarvalho/relay/pkg/apperrors"
	"github.com/rhcarvalho/relay/pkg/tracing"

	"gopkg.in/yaml.v2"
)

// Config is the top-level relay configuration: what to listen on, where
// enrichment data lives, and where normalized events go next.
type Config struct {
	App        AppConfig             `yaml:"app"`
	Server     ServerConfig          `yaml:"server"`
	Metrics    MetricsConfig         `yaml:"metrics"`
	Enrichment EnrichmentConfig      `yaml:"enrichment"`
	Scrub      ScrubConfig           `yaml:"scrub"`
	Upstream   UpstreamConfig        `yaml:"upstream"`
	Tracing    tracing.TracingConfig `yaml:"tracing"`
}

// AppConfig is the ambient, domain-independent part of the configuration.
type AppConfig struct {
	Name            string `yaml:"name"`
	Version         string `yaml:"version"`
	Environment     string `yaml:"environment"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
	CredentialsPath string `yaml:"credentials_path"`
}

// ServerConfig controls the HTTP ingest listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig controls the Prometheus exposition endpoint. When it
// shares the ingest server's port, Path is mounted on that same router;
// Port is only used when it differs from Server.Port.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// EnrichmentConfig points at the GeoIP database and user-agent regex
// files normalization uses. Either path may be empty, in which case that
// enrichment is skipped (internal/geoip.Noop / internal/useragent.Noop).
type EnrichmentConfig struct {
	GeoIPDatabasePath  string `yaml:"geoip_database_path"`
	UserAgentRegexPath string `yaml:"useragent_regex_path"`
	NormalizeUserAgent bool   `yaml:"normalize_user_agent"`
}

// ScrubConfig mirrors scrub.Config for YAML/env configurability.
type ScrubConfig struct {
	ScrubMessages    bool `yaml:"scrub_messages"`
	ScrubExtra       bool `yaml:"scrub_extra"`
	ScrubBreadcrumbs bool `yaml:"scrub_breadcrumbs"`
	RedactEmails     bool `yaml:"redact_emails"`
	RedactIPs        bool `yaml:"redact_ips"`
}

func (c ScrubConfig) toProcessorConfig() scrub.Config {
	return scrub.Config{
		ScrubMessages:    c.ScrubMessages,
		ScrubExtra:       c.ScrubExtra,
		ScrubBreadcrumbs: c.ScrubBreadcrumbs,
		RedactEmails:     c.RedactEmails,
		RedactIPs:        c.RedactIPs,
	}
}

// ToProcessorConfig exposes the scrub.Config conversion to callers outside
// this package (internal/app wires it into internal/server.Config).
func (c Config) ScrubProcessorConfig() scrub.Config {
	return c.Scrub.toProcessorConfig()
}

// UpstreamConfig selects and configures exactly one forwarding transport.
type UpstreamConfig struct {
	Transport string              `yaml:"transport"` // "http", "kafka", "" (none)
	HTTP      HTTPUpstreamConfig  `yaml:"http"`
	Kafka     KafkaUpstreamConfig `yaml:"kafka"`
}

// HTTPUpstreamConfig configures the HTTP forwarder.
type HTTPUpstreamConfig struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	Compression string        `yaml:"compression"` // "gzip", "zstd", "lz4", "snappy", "" (none)
}

// KafkaUpstreamConfig configures the Kafka forwarder.
type KafkaUpstreamConfig struct {
	Brokers     []string        `yaml:"brokers"`
	Topic       string          `yaml:"topic"`
	Compression string          `yaml:"compression"`
	TLSEnabled  bool            `yaml:"tls_enabled"`
	Timeout     time.Duration   `yaml:"timeout"`
	Auth        KafkaAuthConfig `yaml:"auth"`
}

// KafkaAuthConfig configures SASL authentication for the Kafka forwarder.
type KafkaAuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Mechanism string `yaml:"mechanism"`
}

// Load reads configFile (if non-empty), applies defaults for anything
// left unset, then lets environment variables override the result:
// file, then defaults, then environment.
func Load(configFile string) (*Config, error) {
	config := &Config{}

	if configFile != "" {
		if err := loadConfigFile(configFile, config); err != nil {
			return nil, errors.ConfigError("load", fmt.Sprintf("failed to load config file %s: %v", configFile, err))
		}
	}

	applyDefaults(config)
	applyEnvironmentOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func loadConfigFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.App.Name == "" {
		config.App.Name = "github.com/rhcarvalho/relay"
	}
	if config.App.Version == "" {
		config.App.Version = "v0.1.0"
	}
	if config.App.Environment == "" {
		config.App.Environment = "production"
	}
	if config.App.LogLevel == "" {
		config.App.LogLevel = "info"
	}
	if config.App.LogFormat == "" {
		config.App.LogFormat = "json"
	}

	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8401
	}
	if config.Server.MaxBodyBytes == 0 {
		config.Server.MaxBodyBytes = 5 << 20
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}

	config.Metrics.Enabled = true
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}

	if config.Upstream.HTTP.Timeout == 0 {
		config.Upstream.HTTP.Timeout = 10 * time.Second
	}

	if config.Upstream.Kafka.Timeout == 0 {
		config.Upstream.Kafka.Timeout = 10 * time.Second
	}

	// Tracing defaults apply as a block: a config that names no service
	// gets the full default exporter setup, keeping only its enabled flag.
	if config.Tracing.ServiceName == "" {
		enabled := config.Tracing.Enabled
		config.Tracing = tracing.DefaultTracingConfig()
		config.Tracing.Enabled = enabled
	}
}

func applyEnvironmentOverrides(config *Config) {
	config.App.Name = getEnvString("RELAY_APP_NAME", config.App.Name)
	config.App.Environment = getEnvString("RELAY_ENVIRONMENT", config.App.Environment)
	config.App.LogLevel = getEnvString("RELAY_LOG_LEVEL", config.App.LogLevel)
	config.App.LogFormat = getEnvString("RELAY_LOG_FORMAT", config.App.LogFormat)
	config.App.CredentialsPath = getEnvString("RELAY_CREDENTIALS_PATH", config.App.CredentialsPath)

	config.Server.Host = getEnvString("RELAY_SERVER_HOST", config.Server.Host)
	config.Server.Port = getEnvInt("RELAY_SERVER_PORT", config.Server.Port)
	config.Server.MaxBodyBytes = int64(getEnvInt("RELAY_SERVER_MAX_BODY_BYTES", int(config.Server.MaxBodyBytes)))
	config.Server.ShutdownTimeout = getEnvDuration("RELAY_SERVER_SHUTDOWN_TIMEOUT", config.Server.ShutdownTimeout)

	config.Metrics.Enabled = getEnvBool("RELAY_METRICS_ENABLED", config.Metrics.Enabled)
	config.Metrics.Path = getEnvString("RELAY_METRICS_PATH", config.Metrics.Path)

	config.Enrichment.GeoIPDatabasePath = getEnvString("RELAY_GEOIP_DB_PATH", config.Enrichment.GeoIPDatabasePath)
	config.Enrichment.UserAgentRegexPath = getEnvString("RELAY_UA_REGEX_PATH", config.Enrichment.UserAgentRegexPath)
	config.Enrichment.NormalizeUserAgent = getEnvBool("RELAY_NORMALIZE_USER_AGENT", config.Enrichment.NormalizeUserAgent)

	config.Scrub.ScrubMessages = getEnvBool("RELAY_SCRUB_MESSAGES", config.Scrub.ScrubMessages)
	config.Scrub.ScrubExtra = getEnvBool("RELAY_SCRUB_EXTRA", config.Scrub.ScrubExtra)
	config.Scrub.ScrubBreadcrumbs = getEnvBool("RELAY_SCRUB_BREADCRUMBS", config.Scrub.ScrubBreadcrumbs)
	config.Scrub.RedactEmails = getEnvBool("RELAY_REDACT_EMAILS", config.Scrub.RedactEmails)
	config.Scrub.RedactIPs = getEnvBool("RELAY_REDACT_IPS", config.Scrub.RedactIPs)

	config.Tracing.Enabled = getEnvBool("RELAY_TRACING_ENABLED", config.Tracing.Enabled)
	config.Tracing.Exporter = getEnvString("RELAY_TRACING_EXPORTER", config.Tracing.Exporter)
	config.Tracing.Endpoint = getEnvString("RELAY_TRACING_ENDPOINT", config.Tracing.Endpoint)

	config.Upstream.Transport = getEnvString("RELAY_UPSTREAM_TRANSPORT", config.Upstream.Transport)
	config.Upstream.HTTP.URL = getEnvString("RELAY_UPSTREAM_HTTP_URL", config.Upstream.HTTP.URL)
	config.Upstream.HTTP.Compression = getEnvString("RELAY_UPSTREAM_HTTP_COMPRESSION", config.Upstream.HTTP.Compression)
	config.Upstream.HTTP.Timeout = getEnvDuration("RELAY_UPSTREAM_HTTP_TIMEOUT", config.Upstream.HTTP.Timeout)

	if brokers := getEnvStringSlice("RELAY_UPSTREAM_KAFKA_BROKERS", nil); brokers != nil {
		config.Upstream.Kafka.Brokers = brokers
	}
	config.Upstream.Kafka.Topic = getEnvString("RELAY_UPSTREAM_KAFKA_TOPIC", config.Upstream.Kafka.Topic)
	config.Upstream.Kafka.Compression = getEnvString("RELAY_UPSTREAM_KAFKA_COMPRESSION", config.Upstream.Kafka.Compression)
	config.Upstream.Kafka.TLSEnabled = getEnvBool("RELAY_UPSTREAM_KAFKA_TLS_ENABLED", config.Upstream.Kafka.TLSEnabled)
	config.Upstream.Kafka.Auth.Enabled = getEnvBool("RELAY_UPSTREAM_KAFKA_AUTH_ENABLED", config.Upstream.Kafka.Auth.Enabled)
	config.Upstream.Kafka.Auth.Username = getEnvString("RELAY_UPSTREAM_KAFKA_AUTH_USERNAME", config.Upstream.Kafka.Auth.Username)
	config.Upstream.Kafka.Auth.Password = getEnvString("RELAY_UPSTREAM_KAFKA_AUTH_PASSWORD", config.Upstream.Kafka.Auth.Password)
	config.Upstream.Kafka.Auth.Mechanism = getEnvString("RELAY_UPSTREAM_KAFKA_AUTH_MECHANISM", config.Upstream.Kafka.Auth.Mechanism)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// Validate checks the fully-resolved configuration for internal
// consistency before anything is constructed from it.
func Validate(config *Config) error {
	var problems []string

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port must be between 1 and 65535, got %d", config.Server.Port))
	}
	if config.Server.MaxBodyBytes <= 0 {
		problems = append(problems, "server.max_body_bytes must be positive")
	}

	switch config.Upstream.Transport {
	case "", "none":
	case "http":
		if config.Upstream.HTTP.URL == "" {
			problems = append(problems, "upstream.http.url is required when upstream.transport is \"http\"")
		}
	case "kafka":
		if len(config.Upstream.Kafka.Brokers) == 0 {
			problems = append(problems, "upstream.kafka.brokers is required when upstream.transport is \"kafka\"")
		}
		if config.Upstream.Kafka.Topic == "" {
			problems = append(problems, "upstream.kafka.topic is required when upstream.transport is \"kafka\"")
		}
		if config.Upstream.Kafka.Auth.Enabled {
			switch strings.ToUpper(config.Upstream.Kafka.Auth.Mechanism) {
			case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
			default:
				problems = append(problems, fmt.Sprintf("upstream.kafka.auth.mechanism %q is not supported", config.Upstream.Kafka.Auth.Mechanism))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("upstream.transport %q is not one of \"http\", \"kafka\", \"\"", config.Upstream.Transport))
	}

	if config.Enrichment.GeoIPDatabasePath != "" {
		if _, err := os.Stat(config.Enrichment.GeoIPDatabasePath); err != nil {
			problems = append(problems, fmt.Sprintf("enrichment.geoip_database_path: %v", err))
		}
	}
	if config.Enrichment.UserAgentRegexPath != "" {
		if _, err := os.Stat(config.Enrichment.UserAgentRegexPath); err != nil {
			problems = append(problems, fmt.Sprintf("enrichment.useragent_regex_path: %v", err))
		}
	}

	if len(problems) > 0 {
		return errors.ConfigError("validate", strings.Join(problems, "; "))
	}
	return nil
}
