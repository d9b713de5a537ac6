package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "anonymizer"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker = "localhost:9092"
	DefaultAuditTopic  = "anonymizer.audit"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "audit-archive"

	DefaultModelBaseURL   = "http://localhost:8501"
	DefaultOverlapPolicy  = "model_wins"
	DefaultBatchSize      = 100
	DefaultBatchWorkers   = 8
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultFallbackAnswer = "I'm sorry, I couldn't understand your request. Could you rephrase it?"
)

// DefaultLabelTokens maps the model entity labels treated as PII to their
// redaction tokens.
func DefaultLabelTokens() map[string]string {
	return map[string]string{
		"PERSON": "[REDACTED_PERSON]",
		"GPE":    "[REDACTED_LOCATION]",
		"ORG":    "[REDACTED_ORG]",
		"MONEY":  "[REDACTED_AMOUNT]",
	}
}

// DefaultDetectors returns the built-in pattern detectors for PII formats
// that recognition models routinely miss.
func DefaultDetectors() []DetectorConfig {
	return []DetectorConfig{
		{
			Name:    "EMAIL",
			Pattern: `(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Token:   "[REDACTED_EMAIL]",
		},
		{
			Name:    "PHONE",
			Pattern: `\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`,
			Token:   "[REDACTED_PHONE]",
		},
		{
			Name:    "SSN",
			Pattern: `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`,
			Token:   "[REDACTED_SSN]",
		},
	}
}

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20 // 1 MiB
	}
	if cfg.Server.RateLimitRPS == 0 {
		cfg.Server.RateLimitRPS = 50
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 100
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 10 * time.Minute
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "anonymizer"
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.AuditTopic == "" {
		cfg.Kafka.AuditTopic = DefaultAuditTopic
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}

	// MinIO
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// Model
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = DefaultModelBaseURL
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 10 * time.Second
	}
	if cfg.Model.EntityModel == "" {
		cfg.Model.EntityModel = "ner"
	}
	if cfg.Model.IntentModel == "" {
		cfg.Model.IntentModel = "intent"
	}
	if cfg.Model.ConfidenceThreshold == 0 {
		cfg.Model.ConfidenceThreshold = 0.5
	}

	// Anonymizer
	if len(cfg.Anonymizer.LabelTokens) == 0 {
		cfg.Anonymizer.LabelTokens = DefaultLabelTokens()
	}
	if len(cfg.Anonymizer.Detectors) == 0 {
		cfg.Anonymizer.Detectors = DefaultDetectors()
	}
	if cfg.Anonymizer.OverlapPolicy == "" {
		cfg.Anonymizer.OverlapPolicy = DefaultOverlapPolicy
	}

	// Batch
	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = DefaultBatchWorkers
	}
	if cfg.Batch.MaxDocuments == 0 {
		cfg.Batch.MaxDocuments = DefaultBatchSize
	}
	if cfg.Batch.DocumentTimeout == 0 {
		cfg.Batch.DocumentTimeout = 30 * time.Second
	}

	// Chat
	if cfg.Chat.ConfidenceThreshold == 0 {
		cfg.Chat.ConfidenceThreshold = 0.5
	}
	if cfg.Chat.FallbackMessage == "" {
		cfg.Chat.FallbackMessage = DefaultFallbackAnswer
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
