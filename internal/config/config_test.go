// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Server.Environment = "staging" },
			wantErr: "environment",
		},
		{
			name:    "missing catalog",
			mutate:  func(c *Config) { c.Catalog.Path = "" },
			wantErr: "path is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "level",
		},
		{
			name: "short jwt secret",
			mutate: func(c *Config) {
				c.Security.AuthMode = "jwt"
				c.Security.JWTSecret = "short"
			},
			wantErr: "ATELIER_JWT_SECRET",
		},
		{
			name:    "production without auth",
			mutate:  func(c *Config) { c.Server.Environment = "production" },
			wantErr: "ATELIER_AUTH_MODE=none",
		},
		{
			name: "production wildcard cors",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.AuthMode = "jwt"
				c.Security.JWTSecret = strings.Repeat("s", 32)
			},
			wantErr: "ATELIER_CORS_ORIGINS",
		},
		{
			name:    "static embeddings without path",
			mutate:  func(c *Config) { c.Embedding.Provider = "static" },
			wantErr: "ATELIER_EMBEDDING_STATIC",
		},
		{
			name: "http embeddings without model",
			mutate: func(c *Config) {
				c.Embedding.Provider = "http"
				c.Embedding.Endpoint = "http://localhost:8080/v1/embeddings"
			},
			wantErr: "ATELIER_EMBEDDING_MODEL",
		},
		{
			name: "no state path",
			mutate: func(c *Config) {
				c.Storage.StatePath = ""
			},
			wantErr: "ATELIER_STATE_PATH",
		},
		{
			name: "nats without url",
			mutate: func(c *Config) {
				c.Events.Transport = "nats"
				c.Events.NATSURL = ""
			},
			wantErr: "ATELIER_NATS_URL",
		},
		{
			name:    "poison topic equals topic",
			mutate:  func(c *Config) { c.Events.PoisonTopic = c.Events.Topic },
			wantErr: "poison_topic",
		},
		{
			name: "outbox without path",
			mutate: func(c *Config) {
				c.Events.Outbox.Enabled = true
				c.Events.Outbox.Path = ""
			},
			wantErr: "ATELIER_OUTBOX_PATH",
		},
		{
			name:    "gc ratio out of range",
			mutate:  func(c *Config) { c.Storage.GCDiscardRatio = 1.5 },
			wantErr: "gc_discard_ratio",
		},
		{
			name:    "engine config checked",
			mutate:  func(c *Config) { c.Recommend.PageQuota = 0 },
			wantErr: "recommend: page_quota",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_InMemoryWithoutPath(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Storage.StatePath = ""
	cfg.Storage.InMemory = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{"ATELIER_PAGE_QUOTA", "recommend.page_quota"},
		{"atelier_http_port", "server.port"},
		{"ATELIER_COLD_START_TOP_K", "recommend.channels.cold_start.top_k"},
		{"ATELIER_NATS_URL", "events.nats_url"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.key); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestEnvVars_PathsExist(t *testing.T) {
	t.Parallel()

	// Every mapped path must name a real leaf of the default config.
	valid := map[string]bool{}
	collectPaths(reflect.ValueOf(*Default()), "", valid)
	for env, path := range EnvVars() {
		if !valid[path] {
			t.Errorf("%s maps to unknown path %q", env, path)
		}
	}
}

func collectPaths(v reflect.Value, prefix string, out map[string]bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("koanf")
		if name == "" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			collectPaths(fv, path, out)
			continue
		}
		out[path] = true
	}
}

// The tests below change process-wide environment variables and must not
// run in parallel.

func TestLoadFile_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
server:
  port: 9000
catalog:
  path: /srv/catalog.csv
recommend:
  page_quota: 24
  blender:
    page_budget: 3s
  channels:
    cold_start:
      top_k: 30
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("ATELIER_PAGE_QUOTA", "12")
	t.Setenv("ATELIER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ATELIER_BLENDER_PARALLEL", "true")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000 from file", cfg.Server.Port)
	}
	if cfg.Catalog.Path != "/srv/catalog.csv" {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
	if cfg.Recommend.PageQuota != 12 {
		t.Errorf("PageQuota = %d, want 12 from env", cfg.Recommend.PageQuota)
	}
	if cfg.Recommend.Blender.PageBudget != 3*time.Second {
		t.Errorf("PageBudget = %v, want 3s", cfg.Recommend.Blender.PageBudget)
	}
	if !cfg.Recommend.Blender.Parallel {
		t.Error("Blender.Parallel = false, want true from env")
	}
	if cfg.Recommend.Channels.ColdStart.TopK != 30 {
		t.Errorf("ColdStart.TopK = %d, want 30", cfg.Recommend.Channels.ColdStart.TopK)
	}
	if cfg.Recommend.NumRecommended != 200 {
		t.Errorf("NumRecommended = %d, want default 200", cfg.Recommend.NumRecommended)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.Security.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Setenv("ATELIER_PAGE_QUOTA", "0")

	if _, err := LoadFile(""); err == nil {
		t.Fatal("LoadFile() expected validation error")
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadFile() expected error for a missing file")
	}
}

func TestFindConfigFile_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

func TestToRecommendConfig_IsCopy(t *testing.T) {
	t.Parallel()

	cfg := Default()
	rc := cfg.ToRecommendConfig()
	rc.PageQuota = 1
	rc.Channels.Tags.FallbackRates["Extra"] = 1

	if cfg.Recommend.PageQuota == 1 {
		t.Error("ToRecommendConfig() shares PageQuota")
	}
	if _, ok := cfg.Recommend.Channels.Tags.FallbackRates["Extra"]; ok {
		t.Error("ToRecommendConfig() shares FallbackRates")
	}
}
