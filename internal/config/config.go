// Package config defines all configuration structures for the anonymizer
// service.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"regexp"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// DSN renders the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the audit-event producer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	AuditTopic      string        `mapstructure:"audit_topic"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	Async           bool          `mapstructure:"async"`
}

// MinIOConfig holds the audit-archive object-storage parameters.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// ModelConfig holds the parameters of the external NLP serving endpoint that
// provides named-entity recognition and intent classification.
type ModelConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	EntityModel         string        `mapstructure:"entity_model"`
	IntentModel         string        `mapstructure:"intent_model"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	MaxRetries          int           `mapstructure:"max_retries"`
}

// DetectorConfig configures one deterministic pattern detector.
type DetectorConfig struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	Token   string `mapstructure:"token"`
}

// AnonymizerConfig holds the detection and redaction parameters.
type AnonymizerConfig struct {
	// LabelTokens maps model entity labels to redaction tokens. Labels
	// absent from the map are not treated as PII.
	LabelTokens map[string]string `mapstructure:"label_tokens"`

	// Detectors lists the configured pattern detectors. Patterns are
	// compiled during Validate; a bad pattern prevents startup.
	Detectors []DetectorConfig `mapstructure:"detectors"`

	// OverlapPolicy is "model_wins" or "pattern_wins".
	OverlapPolicy string `mapstructure:"overlap_policy"`
}

// BatchConfig holds batch anonymization execution parameters.
type BatchConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	MaxDocuments    int           `mapstructure:"max_documents"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout"`
}

// ChatConfig holds the conversational pipeline parameters.
type ChatConfig struct {
	KnowledgeBasePath   string  `mapstructure:"knowledge_base_path"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	FallbackMessage     string  `mapstructure:"fallback_message"`
	PersistLogs         bool    `mapstructure:"persist_logs"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// Config is the root configuration structure for the service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Model      ModelConfig      `mapstructure:"model"`
	Anonymizer AnonymizerConfig `mapstructure:"anonymizer"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Log        LogConfig        `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.AuditTopic == "" {
		return fmt.Errorf("config: kafka.audit_topic is required")
	}

	// Model
	if c.Model.BaseURL == "" {
		return fmt.Errorf("config: model.base_url is required")
	}
	if c.Model.ConfidenceThreshold < 0 || c.Model.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: model.confidence_threshold %v is out of range [0, 1]", c.Model.ConfidenceThreshold)
	}

	// Anonymizer
	if len(c.Anonymizer.LabelTokens) == 0 && len(c.Anonymizer.Detectors) == 0 {
		return fmt.Errorf("config: anonymizer must configure at least one label token or detector")
	}
	for label, token := range c.Anonymizer.LabelTokens {
		if label == "" || token == "" {
			return fmt.Errorf("config: anonymizer.label_tokens entries must have non-empty label and token")
		}
	}
	seen := map[string]bool{}
	for _, d := range c.Anonymizer.Detectors {
		if d.Name == "" || d.Pattern == "" || d.Token == "" {
			return fmt.Errorf("config: anonymizer.detectors[%q]: name, pattern, and token are required", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("config: anonymizer.detectors[%q]: duplicate detector name", d.Name)
		}
		seen[d.Name] = true
		if _, err := regexp.Compile(d.Pattern); err != nil {
			return fmt.Errorf("config: anonymizer.detectors[%q]: invalid pattern: %w", d.Name, err)
		}
	}
	switch c.Anonymizer.OverlapPolicy {
	case "model_wins", "pattern_wins":
	default:
		return fmt.Errorf("config: anonymizer.overlap_policy %q is invalid; expected model_wins|pattern_wins", c.Anonymizer.OverlapPolicy)
	}

	// Batch
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("config: batch.concurrency must be ≥ 1, got %d", c.Batch.Concurrency)
	}
	if c.Batch.MaxDocuments < 1 {
		return fmt.Errorf("config: batch.max_documents must be ≥ 1, got %d", c.Batch.MaxDocuments)
	}

	// Chat
	if c.Chat.ConfidenceThreshold < 0 || c.Chat.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: chat.confidence_threshold %v is out of range [0, 1]", c.Chat.ConfidenceThreshold)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
