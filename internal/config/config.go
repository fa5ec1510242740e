// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package config

import (
	"time"

	"github.com/tomtom215/atelier/internal/recommend"
)

// Config holds all application configuration.
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Security  SecurityConfig   `koanf:"security"`
	Logging   LoggingConfig    `koanf:"logging"`
	Catalog   CatalogConfig    `koanf:"catalog"`
	Index     IndexConfig      `koanf:"index"`
	Embedding EmbeddingConfig  `koanf:"embedding"`
	Storage   StorageConfig    `koanf:"storage"`
	Events    EventsConfig     `koanf:"events"`
	Recommend recommend.Config `koanf:"recommend"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// Environment is development or production. Production enables stricter
	// security checks.
	Environment string `koanf:"environment" validate:"oneof=development production"`
}

// SecurityConfig configures authentication, CORS and rate limiting.
type SecurityConfig struct {
	// AuthMode is none or jwt. With jwt every per-user route requires a
	// bearer token whose subject equals the user in the path.
	AuthMode  string `koanf:"auth_mode" validate:"oneof=none jwt"`
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig locates the item catalog.
type CatalogConfig struct {
	// Path is a JSON, CSV or DuckDB file.
	Path string `koanf:"path" validate:"required"`

	// Format overrides detection from the file extension.
	Format string `koanf:"format" validate:"omitempty,oneof=json csv duckdb"`

	// Query selects items from a DuckDB source. DuckDB table functions such
	// as read_parquet work here too.
	Query string `koanf:"query"`

	// AliasesPath is a tag alias CSV written by "atelierctl tags consolidate".
	AliasesPath string `koanf:"aliases_path"`

	// TagTypesPath is a CSV mapping tags to style, theme, movement or other.
	TagTypesPath string `koanf:"tag_types_path"`
}

// IndexConfig locates prebuilt vector indexes.
type IndexConfig struct {
	// ImagePath is the image embedding index. Empty disables the image channel.
	ImagePath string `koanf:"image_path"`

	// DescriptionPath is the description embedding index. Empty disables the
	// description channel.
	DescriptionPath string `koanf:"description_path"`

	// TagMetric is the metric of the tag index built at startup for the
	// profile channel: l2 or ip.
	TagMetric string `koanf:"tag_metric" validate:"oneof=l2 ip"`
}

// EmbeddingConfig selects the text embedder used for tags and cold start.
type EmbeddingConfig struct {
	// Provider is none, static or http.
	Provider string `koanf:"provider" validate:"oneof=none static http"`

	// StaticPath is a JSON object mapping text to vector (provider static).
	StaticPath string `koanf:"static_path"`

	// HTTP provider settings, OpenAI-compatible /embeddings.
	Endpoint          string        `koanf:"endpoint" validate:"omitempty,url"`
	APIKey            string        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	Dimensions        int           `koanf:"dimensions" validate:"min=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"min=0"`
	BatchSize         int           `koanf:"batch_size" validate:"min=0"`
	Timeout           time.Duration `koanf:"timeout" validate:"gte=0"`
	MaxRetries        int           `koanf:"max_retries"`

	// CacheTTL caches embeddings in memory. Zero disables the cache.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// StatePath is the BadgerDB directory for sessions and interaction logs.
	StatePath  string        `koanf:"state_path"`
	InMemory   bool          `koanf:"in_memory"`
	SyncWrites bool          `koanf:"sync_writes"`
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gte=0"`

	// InteractedDir receives interacted_<user>.txt files. Empty disables them.
	InteractedDir string `koanf:"interacted_dir"`

	// SnapshotDir caches derived data such as the cold-start facet table.
	// Empty disables the cache.
	SnapshotDir string `koanf:"snapshot_dir"`

	// SnapshotKeep is the number of snapshot versions kept per name.
	SnapshotKeep int `koanf:"snapshot_keep" validate:"min=1"`

	// FlushInterval persists dirty sessions periodically.
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gt=0"`

	// GCInterval runs BadgerDB value log GC. Zero disables it.
	GCInterval     time.Duration `koanf:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio" validate:"gt=0,lt=1"`

	// BackupDir receives state store backups. Empty disables scheduled
	// backups.
	BackupDir      string        `koanf:"backup_dir"`
	BackupInterval time.Duration `koanf:"backup_interval" validate:"gte=0"`
	BackupKeep     int           `koanf:"backup_keep" validate:"min=1"`
	BackupKeepDays int           `koanf:"backup_keep_days" validate:"min=0"`
}

// EventsConfig configures the interaction event bus.
type EventsConfig struct {
	// Transport is gochannel (in-process) or nats.
	Transport string `koanf:"transport" validate:"oneof=gochannel nats"`
	Topic     string `koanf:"topic" validate:"required"`

	NATSURL     string `koanf:"nats_url"`
	QueueGroup  string `koanf:"queue_group"`
	Subscribers int    `koanf:"subscribers" validate:"min=1"`

	// OutputBuffer is the gochannel buffer size.
	OutputBuffer int64 `koanf:"output_buffer" validate:"min=0"`

	RetryMaxRetries      int           `koanf:"retry_max_retries" validate:"min=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval" validate:"gt=0"`
	CloseTimeout         time.Duration `koanf:"close_timeout" validate:"gt=0"`

	// PoisonTopic receives events that failed every retry. Empty drops them.
	PoisonTopic string `koanf:"poison_topic"`

	// DedupTTL drops redelivered events with a seen event ID. Zero disables it.
	DedupTTL time.Duration `koanf:"dedup_ttl" validate:"min=0"`

	// Outbox makes accepted interactions durable before they are published.
	Outbox OutboxConfig `koanf:"outbox"`
}

// OutboxConfig configures the interaction outbox.
type OutboxConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	SyncWrites    bool          `koanf:"sync_writes"`
	RetryInterval time.Duration `koanf:"retry_interval" validate:"gt=0"`
	RetryBackoff  time.Duration `koanf:"retry_backoff" validate:"gt=0"`
	MaxRetries    int           `koanf:"max_retries" validate:"min=1"`
	EntryTTL      time.Duration `koanf:"entry_ttl" validate:"gt=0"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ToRecommendConfig returns an independent copy of the engine configuration.
func (c *Config) ToRecommendConfig() *recommend.Config {
	return c.Recommend.Clone()
}
