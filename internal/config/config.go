// Package config provides configuration management for the enrichment service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ENRICH"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the enrichment service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Temporal contains settings for durable batch workflows.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Kafka contains event publishing and request listener settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Sources contains one block per external metadata provider.
	Sources SourcesConfig `mapstructure:"sources"`
	// Enrichment contains batch and pipeline settings.
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port" validate:"min=1,max=65535"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// EnrichTimeout bounds a synchronous single-record enrichment request.
	EnrichTimeout time.Duration `mapstructure:"enrich_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"-"`
	Name     string `mapstructure:"name" validate:"required"`
	// SSLMode is one of require, verify-ca, verify-full or disable.
	SSLMode           string        `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the directory holding the SQL migrations.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun applies pending migrations on startup.
	MigrationAutoRun       bool `mapstructure:"migration_auto_run"`
	StatementCacheCapacity int  `mapstructure:"statement_cache_capacity"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue for enrichment batch workflows.
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// KafkaConfig holds event publishing and request listener settings.
type KafkaConfig struct {
	// Enabled controls whether events are published and requests consumed.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// EventsTopic receives record.enriched and version.linked events.
	EventsTopic string `mapstructure:"events_topic"`
	// RequestsTopic carries enrichment requests consumed by the listener.
	RequestsTopic string `mapstructure:"requests_topic"`
	// GroupID is the consumer group of the request listener.
	GroupID string `mapstructure:"group_id"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// SourcesConfig holds one block per source key. The mapstructure keys are
// the provenance keys of the sources.
type SourcesConfig struct {
	// ContactEmail is sent to providers with a polite pool (Crossref,
	// OpenAlex) and is the credential Unpaywall requires.
	ContactEmail string `mapstructure:"contact_email"`

	SemanticScholar SourceConfig `mapstructure:"s2"`
	Crossref        SourceConfig `mapstructure:"crossref"`
	OpenAlex        SourceConfig `mapstructure:"openalex"`
	EuropePMC       SourceConfig `mapstructure:"epmc"`
	PubMed          SourceConfig `mapstructure:"pubmed"`
	Scopus          SourceConfig `mapstructure:"scopus"`
	Unpaywall       SourceConfig `mapstructure:"unpaywall"`
	ArXiv           SourceConfig `mapstructure:"arxiv"`
	BioRxiv         SourceConfig `mapstructure:"biorxiv"`
	MedRxiv         SourceConfig `mapstructure:"medrxiv"`
	Preprints       SourceConfig `mapstructure:"preprints"`
}

// SourceConfig holds configuration for a single external source.
type SourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is read from the environment only (see loadSecrets).
	APIKey string `mapstructure:"-"`
	// BaseURL overrides the provider's default endpoint.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// Timeout is the deadline of one HTTP attempt.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum calls per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	// MaxRetries caps retries of transient failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// RetryDelay is the initial retry backoff.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// EnrichmentConfig holds enrichment pipeline and batch settings.
type EnrichmentConfig struct {
	// MaxWorkers bounds concurrent record enrichments in a batch.
	MaxWorkers int `mapstructure:"max_workers" validate:"min=1,max=64"`
	// SecondPass enriches published-version records created by the first pass.
	SecondPass bool `mapstructure:"second_pass"`
	// SecondPassLimit caps the records of the second pass; 0 means all.
	SecondPassLimit int `mapstructure:"second_pass_limit" validate:"gte=0"`
	// AbstractOrder is the abstract source precedence by source key.
	AbstractOrder []string `mapstructure:"abstract_order" validate:"dive,oneof=s2 crossref openalex epmc pubmed scopus"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/enrichment-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// The prefixed name wins over the provider's conventional name.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = firstEnv(EnvPrefix+"_DATABASE_PASSWORD", "PGPASSWORD")

	cfg.Sources.SemanticScholar.APIKey = firstEnv(EnvPrefix+"_SOURCES_S2_API_KEY", "SEMANTIC_SCHOLAR_API_KEY")
	cfg.Sources.Scopus.APIKey = firstEnv(EnvPrefix+"_SOURCES_SCOPUS_API_KEY", "SCOPUS_API_KEY")
	cfg.Sources.PubMed.APIKey = firstEnv(EnvPrefix+"_SOURCES_PUBMED_API_KEY", "NCBI_API_KEY")

	if email := firstEnv(EnvPrefix+"_SOURCES_CONTACT_EMAIL", "UNPAYWALL_EMAIL"); email != "" {
		cfg.Sources.ContactEmail = email
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// sourceDefaults are the per-source defaults: enabled, base URL and calls/sec.
var sourceDefaults = []struct {
	key     string
	baseURL string
	rate    float64
}{
	{"s2", "https://api.semanticscholar.org/graph/v1", 5},
	{"crossref", "https://api.crossref.org", 1},
	{"openalex", "https://api.openalex.org", 5},
	{"epmc", "https://www.ebi.ac.uk/europepmc/webservices/rest", 2},
	{"pubmed", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", 3},
	{"scopus", "https://api.elsevier.com/content", 2},
	{"unpaywall", "https://api.unpaywall.org/v2", 5},
	{"arxiv", "https://export.arxiv.org/api", 0.33},
	{"biorxiv", "https://api.biorxiv.org", 2},
	{"medrxiv", "https://api.biorxiv.org", 2},
	{"preprints", "https://www.preprints.org/api", 2},
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enrich_timeout", "90s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "enrichment")
	v.SetDefault("database.name", "enrichment_service")
	// Use ENRICH_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Temporal defaults
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "enrichment-batches")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "enrichment")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.events_topic", "events.enrichment_service")
	v.SetDefault("kafka.requests_topic", "requests.enrichment_service")
	v.SetDefault("kafka.group_id", "enrichment-service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Source defaults. Credentials come from the environment (see loadSecrets).
	v.SetDefault("sources.contact_email", "")
	for _, s := range sourceDefaults {
		prefix := "sources." + s.key + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"base_url", s.baseURL)
		v.SetDefault(prefix+"timeout", "15s")
		v.SetDefault(prefix+"rate_limit", s.rate)
		v.SetDefault(prefix+"max_retries", 3)
		v.SetDefault(prefix+"retry_delay", "1s")
	}

	// Enrichment defaults
	v.SetDefault("enrichment.max_workers", 4)
	v.SetDefault("enrichment.second_pass", true)
	v.SetDefault("enrichment.second_pass_limit", 0)
	v.SetDefault("enrichment.abstract_order", []string{"s2", "crossref", "openalex", "epmc", "pubmed", "scopus"})
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v (rule %s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	seen := make(map[string]bool, len(c.Enrichment.AbstractOrder))
	for _, key := range c.Enrichment.AbstractOrder {
		if seen[key] {
			return fmt.Errorf("abstract source %q listed twice", key)
		}
		seen[key] = true
	}

	return nil
}
