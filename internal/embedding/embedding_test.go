// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func TestStatic(t *testing.T) {
	t.Parallel()

	s, err := ReadStatic(strings.NewReader(`{"Impressionism":[1,0],"Baroque":[0,1]}`), "table")
	if err != nil {
		t.Fatalf("ReadStatic() error = %v", err)
	}
	if s.Dimensions() != 2 || s.Len() != 2 || s.Model() != "table" {
		t.Errorf("Static = dim %d len %d model %q", s.Dimensions(), s.Len(), s.Model())
	}

	vecs, err := s.Embed(context.Background(), []string{"Baroque", "Cubism"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vecs[0][1] != 1 || vecs[1] != nil {
		t.Errorf("Embed() = %v, want known vector then nil", vecs)
	}

	found, err := Lookup(context.Background(), s, []string{"Cubism", "Impressionism"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(found) != 1 || found["Impressionism"] == nil {
		t.Errorf("Lookup() = %v, want only Impressionism", found)
	}
}

func TestNewStatic_DimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := NewStatic("m", map[string][]float32{"a": {1, 2}, "b": {1}})
	if err == nil {
		t.Fatal("NewStatic() with mixed dimensions should fail")
	}
}

func embeddingServer(t *testing.T, calls *atomic.Int32, failFirst int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failFirst {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := embedResponse{}
		// Reverse order to check that Index is honored.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embedDatum{
				Embedding: []float32{float32(len(req.Input[i])), float32(i)},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPEmbedder_Embed(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := embeddingServer(t, &calls, 0)
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{
		Endpoint:  srv.URL,
		APIKey:    "secret",
		Model:     "test-model",
		BatchSize: 2,
	}, zerolog.Nop())

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Embed() returned %d vectors, want 3", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vecs[%d][0] = %v, want %v", i, vecs[i][0], want)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2 batches", got)
	}
}

func TestHTTPEmbedder_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := embeddingServer(t, &calls, 1)
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{
		Endpoint: srv.URL,
		APIKey:   "secret",
		Backoff:  time.Millisecond,
	}, zerolog.Nop())

	if _, err := e.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestHTTPEmbedder_ClientErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Backoff: time.Millisecond}, zerolog.Nop())
	_, err := e.Embed(context.Background(), []string{"x"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrUnavailable", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want no retries on 401", got)
	}
}

type countingEmbedder struct {
	calls atomic.Int32
	inner Embedder
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int32(len(texts)))
	return c.inner.Embed(ctx, texts)
}
func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *countingEmbedder) Model() string   { return c.inner.Model() }

func TestCached(t *testing.T) {
	t.Parallel()

	s, err := NewStatic("m", map[string][]float32{"a": {1}, "b": {2}})
	if err != nil {
		t.Fatal(err)
	}
	inner := &countingEmbedder{inner: s}
	c := NewCached(inner, time.Hour)
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Embed(ctx, []string{"a", "b", "z"}); err != nil {
		t.Fatal(err)
	}
	vecs, err := c.Embed(ctx, []string{"a", "b", "z"})
	if err != nil {
		t.Fatal(err)
	}

	if vecs[0][0] != 1 || vecs[1][0] != 2 || vecs[2] != nil {
		t.Errorf("Embed() = %v", vecs)
	}
	// Second call only asks for the uncached miss "z".
	if got := inner.calls.Load(); got != 4 {
		t.Errorf("inner texts embedded = %d, want 4", got)
	}
	if c.Dimensions() != 1 || c.Model() != "m" {
		t.Errorf("Dimensions/Model = %d/%q", c.Dimensions(), c.Model())
	}
}
