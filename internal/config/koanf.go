// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/atelier/internal/recommend"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/atelier/config.yaml",
	"/etc/atelier/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8642,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			AuthMode:        "none",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			Path: "/data/catalog.json",
		},
		Index: IndexConfig{
			TagMetric: "l2",
		},
		Embedding: EmbeddingConfig{
			Provider:   "none",
			BatchSize:  64,
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			CacheTTL:   time.Hour,
		},
		Storage: StorageConfig{
			StatePath:      "/data/state",
			SnapshotKeep:   3,
			FlushInterval:  time.Minute,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
			BackupInterval: 6 * time.Hour,
			BackupKeep:     3,
			BackupKeepDays: 7,
		},
		Events: EventsConfig{
			Transport:            "gochannel",
			Topic:                "atelier.interactions",
			NATSURL:              "nats://127.0.0.1:4222",
			QueueGroup:           "atelier",
			Subscribers:          1,
			OutputBuffer:         1024,
			RetryMaxRetries:      3,
			RetryInitialInterval: 100 * time.Millisecond,
			CloseTimeout:         30 * time.Second,
			DedupTTL:             10 * time.Minute,
			Outbox: OutboxConfig{
				Path:          "/data/outbox",
				SyncWrites:    true,
				RetryInterval: 30 * time.Second,
				RetryBackoff:  time.Second,
				MaxRetries:    10,
				EntryTTL:      24 * time.Hour,
			},
		},
		Recommend: *recommend.DefaultConfig(),
	}
}

// Default returns the built-in defaults without reading any source.
func Default() *Config {
	return defaultConfig()
}

// Load is the entry point used by the binaries.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf loads configuration from defaults, an optional YAML file and
// environment variables, in increasing precedence, then validates it.
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile is LoadWithKoanf with an explicit config file. An empty path
// skips the file layer.
func LoadFile(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set by env.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"atelier_http_host":        "server.host",
	"atelier_http_port":        "server.port",
	"atelier_read_timeout":     "server.read_timeout",
	"atelier_write_timeout":    "server.write_timeout",
	"atelier_idle_timeout":     "server.idle_timeout",
	"atelier_shutdown_timeout": "server.shutdown_timeout",
	"atelier_environment":      "server.environment",

	// Security
	"atelier_auth_mode":           "security.auth_mode",
	"atelier_jwt_secret":          "security.jwt_secret",
	"atelier_jwt_issuer":          "security.jwt_issuer",
	"atelier_cors_origins":        "security.cors_origins",
	"atelier_rate_limit_requests": "security.rate_limit_reqs",
	"atelier_rate_limit_window":   "security.rate_limit_window",
	"atelier_disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"atelier_log_level":  "logging.level",
	"atelier_log_format": "logging.format",
	"atelier_log_caller": "logging.caller",

	// Catalog and indexes
	"atelier_catalog_path":      "catalog.path",
	"atelier_catalog_format":    "catalog.format",
	"atelier_catalog_query":     "catalog.query",
	"atelier_tag_aliases":       "catalog.aliases_path",
	"atelier_tag_types":         "catalog.tag_types_path",
	"atelier_image_index":       "index.image_path",
	"atelier_description_index": "index.description_path",
	"atelier_tag_metric":        "index.tag_metric",

	// Embeddings
	"atelier_embedding_provider":   "embedding.provider",
	"atelier_embedding_static":     "embedding.static_path",
	"atelier_embedding_endpoint":   "embedding.endpoint",
	"atelier_embedding_api_key":    "embedding.api_key",
	"atelier_embedding_model":      "embedding.model",
	"atelier_embedding_dimensions": "embedding.dimensions",
	"atelier_embedding_rps":        "embedding.requests_per_second",
	"atelier_embedding_batch_size": "embedding.batch_size",
	"atelier_embedding_timeout":    "embedding.timeout",
	"atelier_embedding_cache_ttl":  "embedding.cache_ttl",

	// Storage
	"atelier_state_path":       "storage.state_path",
	"atelier_state_in_memory":  "storage.in_memory",
	"atelier_state_sync":       "storage.sync_writes",
	"atelier_session_ttl":      "storage.session_ttl",
	"atelier_interacted_dir":   "storage.interacted_dir",
	"atelier_snapshot_dir":     "storage.snapshot_dir",
	"atelier_snapshot_keep":    "storage.snapshot_keep",
	"atelier_flush_interval":   "storage.flush_interval",
	"atelier_gc_interval":      "storage.gc_interval",
	"atelier_gc_discard_ratio": "storage.gc_discard_ratio",
	"atelier_backup_dir":       "storage.backup_dir",
	"atelier_backup_interval":  "storage.backup_interval",
	"atelier_backup_keep":      "storage.backup_keep",
	"atelier_backup_keep_days": "storage.backup_keep_days",

	// Events
	"atelier_events_transport":   "events.transport",
	"atelier_events_topic":       "events.topic",
	"atelier_nats_url":           "events.nats_url",
	"atelier_nats_queue_group":   "events.queue_group",
	"atelier_events_subscribers": "events.subscribers",
	"atelier_events_retries":     "events.retry_max_retries",
	"atelier_events_poison":      "events.poison_topic",
	"atelier_events_dedup_ttl":   "events.dedup_ttl",
	"atelier_outbox_enabled":     "events.outbox.enabled",
	"atelier_outbox_path":        "events.outbox.path",
	"atelier_outbox_in_memory":   "events.outbox.in_memory",
	"atelier_outbox_max_retries": "events.outbox.max_retries",
	"atelier_outbox_entry_ttl":   "events.outbox.entry_ttl",

	// Recommendation engine
	"atelier_page_quota":              "recommend.page_quota",
	"atelier_num_interacted":          "recommend.num_interacted",
	"atelier_num_recommended":         "recommend.num_recommended",
	"atelier_seed":                    "recommend.seed",
	"atelier_blender_parallel":        "recommend.blender.parallel",
	"atelier_logistic_squash":         "recommend.blender.logistic_squash",
	"atelier_page_budget":             "recommend.blender.page_budget",
	"atelier_channel_timeout":         "recommend.blender.channel_timeout",
	"atelier_image_enabled":           "recommend.channels.image.enabled",
	"atelier_num_image":               "recommend.channels.image.num_image",
	"atelier_shuffle_len":             "recommend.channels.image.shuffle_len",
	"atelier_description_enabled":     "recommend.channels.description.enabled",
	"atelier_artist_enabled":          "recommend.channels.artist.enabled",
	"atelier_num_artist":              "recommend.channels.artist.num_artist",
	"atelier_tags_enabled":            "recommend.channels.tags.enabled",
	"atelier_num_tag":                 "recommend.channels.tags.num_tag",
	"atelier_tag_log_len":             "recommend.channels.tags.tag_log_len",
	"atelier_typed_tags_enabled":      "recommend.channels.typed_tags.enabled",
	"atelier_typed_tags_alpha":        "recommend.channels.typed_tags.alpha",
	"atelier_profile_enabled":         "recommend.channels.profile.enabled",
	"atelier_cold_start_enabled":      "recommend.channels.cold_start.enabled",
	"atelier_cold_start_top_k":        "recommend.channels.cold_start.top_k",
	"atelier_cold_start_similarity":   "recommend.channels.cold_start.similarity",
	"atelier_max_sessions":            "recommend.sessions.max_sessions",
	"atelier_breaker_threshold":       "recommend.breaker.failure_threshold",
	"atelier_breaker_open_timeout":    "recommend.breaker.open_timeout",
	"atelier_session_persist_timeout": "recommend.sessions.persist_timeout",
}

// envTransformFunc maps an environment variable to a koanf path. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// EnvVars returns the supported environment variables, upper-cased.
func EnvVars() map[string]string {
	out := make(map[string]string, len(envMappings))
	for k, v := range envMappings {
		out[strings.ToUpper(k)] = v
	}
	return out
}
