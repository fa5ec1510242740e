// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/atelier/internal/metrics"
	"github.com/tomtom215/atelier/internal/resilience"
)

// HTTPConfig configures an OpenAI-compatible embedding endpoint.
type HTTPConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int

	// RequestsPerSecond limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64

	// BatchSize caps texts per request.
	// Default: 64
	BatchSize int

	// Timeout bounds each HTTP request.
	// Default: 30s
	Timeout time.Duration

	// MaxRetries on 429 and 5xx responses. Negative disables retries.
	// Default: 2
	MaxRetries int

	// Backoff is the base delay between retries; it doubles per attempt.
	// Default: 500ms
	Backoff time.Duration
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint through a
// rate limiter and a circuit breaker.
type HTTPEmbedder struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker[[][]float32]
	logger  zerolog.Logger
}

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []embedDatum `json:"data"`
}

type embedDatum struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// statusError is returned for non-200 responses.
type statusError struct {
	code  int
	body  string
	after time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embedding service returned status %d: %s", e.code, e.body)
}

// retryAfter is the Retry-After delay sent with a 429, capped at 30s.
func (e *statusError) retryAfter() time.Duration { return e.after }

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// NewHTTPEmbedder creates an HTTP embedding client.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHTTPEmbedder(cfg HTTPConfig, logger zerolog.Logger) *HTTPEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	logger = logger.With().Str("component", "embedding").Str("model", cfg.Model).Logger()
	return &HTTPEmbedder{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: resilience.NewBreaker[[][]float32](resilience.BreakerConfig{
			Name:             "embedding-api",
			MaxRequests:      1,
			Timeout:          time.Minute,
			FailureThreshold: 5,
		}, logger),
		logger: logger,
	}
}

// Dimensions implements Embedder.
func (e *HTTPEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Model implements Embedder.
func (e *HTTPEmbedder) Model() string { return e.cfg.Model }

// Embed implements Embedder. Inputs are split into batches of BatchSize.
// Failures wrap ErrUnavailable.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		chunk := texts[start:end]

		vecs, err := e.breaker.Execute(func() ([][]float32, error) {
			return e.embedWithRetry(ctx, chunk)
		})
		metrics.RecordEmbeddingRequest(err)
		if err != nil {
			return nil, fmt.Errorf("%w: batch at %d: %v", ErrUnavailable, start, err)
		}
		copy(out[start:end], vecs)
	}
	return out, nil
}

func (e *HTTPEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts, Dimensions: e.cfg.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.cfg.Backoff << (attempt - 1)
			var se *statusError
			if errors.As(lastErr, &se) && se.code == http.StatusTooManyRequests && se.retryAfter() > 0 {
				delay = se.retryAfter()
			}
			e.logger.Debug().Int("attempt", attempt).Dur("delay", delay).Err(lastErr).Msg("retrying embedding request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		vecs, err := e.do(ctx, body, len(texts))
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		var se *statusError
		if !errors.As(err, &se) || !se.retryable() {
			return nil, err
		}
	}
	return nil, fmt.Errorf("all retries exhausted: %w", lastErr)
}

func (e *HTTPEmbedder) do(ctx context.Context, body []byte, n int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		se := &statusError{code: resp.StatusCode, body: truncate(string(data), 200)}
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			se.after = time.Duration(min(secs, 30)) * time.Second
		}
		return nil, se
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([][]float32, n)
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("response index %d out of range for %d inputs", d.Index, n)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
