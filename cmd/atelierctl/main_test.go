// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/recommend"
	"github.com/tomtom215/atelier/internal/recommend/index"
)

func TestBuildIndex(t *testing.T) {
	t.Parallel()

	input := `{"id": 1, "vector": [1, 0]}
{"id": 2, "vector": [0, 1]}
{"id": 3, "vector": [0.9, 0.1]}
`
	x, err := buildIndex(strings.NewReader(input), index.MetricL2, false)
	if err != nil {
		t.Fatalf("buildIndex() error = %v", err)
	}
	if x.Len() != 3 || x.Dim() != 2 {
		t.Fatalf("Len, Dim = %d, %d, want 3, 2", x.Len(), x.Dim())
	}

	got, err := x.SearchByID(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("SearchByID() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("nearest to 1 = %+v, want item 3", got)
	}
}

func TestBuildIndex_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"malformed", `{"id": 1, "vector": [1, 0]`},
		{"dimension mismatch", "{\"id\": 1, \"vector\": [1, 0]}\n{\"id\": 2, \"vector\": [1]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := buildIndex(strings.NewReader(tt.input), index.MetricL2, false); err == nil {
				t.Error("buildIndex() error = nil, want error")
			}
		})
	}
}

func TestParseLog(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := "item_id,timestamp\n42,2026-02-01T10:00:00Z\n\n7\n"

	got, err := parseLog(strings.NewReader(input), now)
	if err != nil {
		t.Fatalf("parseLog() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ItemID != 42 || !got[0].Timestamp.Equal(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].ItemID != 7 || !got[1].Timestamp.Equal(now) {
		t.Errorf("entry 1 = %+v, want item 7 at now", got[1])
	}
}

func TestParseLog_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"bad id after header", "item_id\nabc\n"},
		{"bad timestamp", "5,yesterday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseLog(strings.NewReader(tt.input), time.Now()); err == nil {
				t.Error("parseLog() error = nil, want error")
			}
		})
	}
}

func TestTopItems(t *testing.T) {
	t.Parallel()

	page := &recommend.Page{Items: []recommend.PageItem{{ItemID: 3}, {ItemID: 1}, {ItemID: 2}}}

	if got := topItems(page, 0); got != nil {
		t.Errorf("topItems(0) = %v, want nil", got)
	}
	got := topItems(page, 2)
	if len(got) != 2 || got[0].ItemID != 3 || got[1].ItemID != 1 {
		t.Errorf("topItems(2) = %+v", got)
	}
	if got := topItems(page, 10); len(got) != 3 {
		t.Errorf("topItems(10) len = %d, want 3", len(got))
	}
}

func TestRenderConfig_MasksSecrets(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Security.JWTSecret = "super-secret-value"
	cfg.Embedding.APIKey = "sk-live-123"

	out, err := renderConfig(cfg)
	if err != nil {
		t.Fatalf("renderConfig() error = %v", err)
	}
	s := string(out)
	for _, secret := range []string{"super-secret-value", "sk-live-123"} {
		if strings.Contains(s, secret) {
			t.Errorf("output leaks %q", secret)
		}
	}
	if !strings.Contains(s, "jwt_secret") || !strings.Contains(s, "********") {
		t.Errorf("output missing masked jwt_secret:\n%s", s)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "atelierctl ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStateList(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "storage:\n  backup_dir: " + filepath.Join(dir, "backups") + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "state", "list"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "ID") {
		t.Errorf("output = %q, want a header", out.String())
	}
}
