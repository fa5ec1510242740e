// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/models"
	"github.com/tomtom215/atelier/internal/recommend"
)

// fakeEngine records calls and serves a fixed page.
type fakeEngine struct {
	mu          sync.Mutex
	pageReqs    []recommend.PageRequest
	recorded    map[string][]interactions.Entry
	prefs       map[string]recommend.Preferences
	recommendFn func(req recommend.PageRequest) (*recommend.Page, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		recorded: make(map[string][]interactions.Entry),
		prefs:    make(map[string]recommend.Preferences),
	}
}

func (f *fakeEngine) Recommend(_ context.Context, req recommend.PageRequest) (*recommend.Page, error) {
	f.mu.Lock()
	f.pageReqs = append(f.pageReqs, req)
	f.mu.Unlock()
	if f.recommendFn != nil {
		return f.recommendFn(req)
	}
	return &recommend.Page{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		PageIndex: req.PageIndex,
		Items: []recommend.PageItem{
			{ItemID: 2, Label: "Random", Channel: recommend.ChannelRandom, Weight: 0.5},
			{ItemID: 1, Label: "Artist: Monet", Channel: recommend.ChannelArtist, Weight: 0.5},
		},
	}, nil
}

func (f *fakeEngine) RecordInteractions(_ context.Context, userID string, entries []interactions.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded[userID] = append(f.recorded[userID], entries...)
	return nil
}

func (f *fakeEngine) SetPreferences(_ context.Context, userID string, prefs recommend.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[userID] = prefs
	return nil
}

func (f *fakeEngine) State(_ context.Context, userID string) (*recommend.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recorded[userID]; !ok {
		return nil, fmt.Errorf("%w: %s", recommend.ErrUnknownUser, userID)
	}
	return &recommend.SessionState{
		UserID:     userID,
		Window:     []int64{1, 2, 3},
		Engagement: 4,
		Interacted: []int64{1},
		Pages:      2,
	}, nil
}

func (f *fakeEngine) Status() recommend.EngineStatus {
	return recommend.EngineStatus{Sessions: 3, PagesServed: 7}
}

type fakePublisher struct {
	mu      sync.Mutex
	entries []interactions.Entry
	err     error
}

func (p *fakePublisher) PublishInteractions(_ context.Context, _ string, entries []interactions.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, entries...)
	return nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Item{
		{ID: 1, Title: "Water Lilies", ArtistDisplay: "Claude Monet", Tags: []string{"water"}},
		{ID: 2, Title: "The Starry Night", ArtistDisplay: "Vincent van Gogh", Tags: []string{"night"}},
	}, catalog.Options{})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func testRouter(t *testing.T, engine Recommender, opts ...HandlerOption) http.Handler {
	t.Helper()
	h := NewHandler(engine, testCatalog(t), zerolog.Nop(), opts...)
	return NewRouter(h, RouterConfig{
		Middleware:     &ChiMiddlewareConfig{RateLimitDisabled: true},
		MetricsHandler: http.NotFoundHandler(),
	}, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := do(t, testRouter(t, newFakeEngine()), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGetPage(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	router := testRouter(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/page?page=3&behavior_updated=true", nil)
	req.Header.Set("X-Request-ID", "req-page")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Status != models.StatusSuccess {
		t.Errorf("status = %q", env.Status)
	}
	if env.Metadata.RequestID != "req-page" {
		t.Errorf("request_id = %q, want req-page", env.Metadata.RequestID)
	}

	var page recommend.Page
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.PageIndex != 3 || len(page.Items) != 2 {
		t.Errorf("page = %+v", page)
	}

	if len(engine.pageReqs) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(engine.pageReqs))
	}
	got := engine.pageReqs[0]
	if got.UserID != "alice" || !got.BehaviorUpdated || got.RequestID != "req-page" || got.PageIndex != 3 {
		t.Errorf("page request = %+v", got)
	}
}

func TestGetPage_BadQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
	}{
		{name: "non_numeric_page", target: "/api/v1/users/alice/page?page=abc"},
		{name: "negative_page", target: "/api/v1/users/alice/page?page=-1"},
		{name: "bad_bool", target: "/api/v1/users/alice/page?behavior_updated=maybe"},
		{name: "space_in_user", target: "/api/v1/users/al%20ice/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := newFakeEngine()
			rec := do(t, testRouter(t, engine), http.MethodGet, tt.target, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			if env.Error == nil || env.Error.Code != CodeValidation {
				t.Errorf("error = %+v, want %s", env.Error, CodeValidation)
			}
			if len(engine.pageReqs) != 0 {
				t.Error("engine should not be called for an invalid query")
			}
		})
	}
}

func TestGetPage_EngineErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{name: "unknown_user", err: recommend.ErrUnknownUser, want: http.StatusNotFound, code: CodeNotFound},
		{name: "timeout", err: fmt.Errorf("blend: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout, code: CodeTimeout},
		{name: "internal", err: errors.New("boom"), want: http.StatusInternalServerError, code: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := newFakeEngine()
			engine.recommendFn = func(recommend.PageRequest) (*recommend.Page, error) { return nil, tt.err }

			rec := do(t, testRouter(t, engine), http.MethodGet, "/api/v1/users/alice/page", "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestGetPageCSV(t *testing.T) {
	t.Parallel()

	rec := do(t, testRouter(t, newFakeEngine()), http.MethodGet, "/api/v1/users/alice/page.csv?page=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "page-1.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	want := "rank,item_id,title,channel,label,weight\n" +
		"1,2,The Starry Night,random,Random,0.5\n" +
		"2,1,Water Lilies,artist,Artist: Monet,0.5\n"
	if rec.Body.String() != want {
		t.Errorf("body =\n%s\nwant\n%s", rec.Body.String(), want)
	}
}

func TestPostInteractions_Direct(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	router := testRouter(t, engine)

	body := `{"items":[{"item_id":1,"timestamp":"2024-03-01T10:00:00Z"},{"item_id":2}]}`
	rec := do(t, router, http.MethodPost, "/api/v1/users/alice/interactions", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var accepted InteractionsAccepted
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.Accepted != 2 || accepted.Queued {
		t.Errorf("accepted = %+v", accepted)
	}

	got := engine.recorded["alice"]
	if len(got) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", got[0].Timestamp)
	}
	if got[1].Timestamp.IsZero() {
		t.Error("missing timestamp should be stamped with the receive time")
	}
}

func TestPostInteractions_Published(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	pub := &fakePublisher{}
	router := testRouter(t, engine, WithPublisher(pub))

	rec := do(t, router, http.MethodPost, "/api/v1/users/alice/interactions", `{"items":[{"item_id":2}]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(pub.entries) != 1 || pub.entries[0].ItemID != 2 {
		t.Errorf("published = %+v", pub.entries)
	}
	if len(engine.recorded) != 0 {
		t.Error("engine should not be called when a publisher is configured")
	}
}

func TestPostInteractions_PublisherDown(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("nats: no servers available")}
	router := testRouter(t, newFakeEngine(), WithPublisher(pub))

	rec := do(t, router, http.MethodPost, "/api/v1/users/alice/interactions", `{"items":[{"item_id":2}]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPostInteractions_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
		code string
	}{
		{name: "malformed", body: `{"items":`, want: http.StatusBadRequest, code: CodeBadRequest},
		{name: "unknown_field", body: `{"items":[{"item_id":1}],"extra":1}`, want: http.StatusBadRequest, code: CodeBadRequest},
		{name: "empty_items", body: `{"items":[]}`, want: http.StatusBadRequest, code: CodeValidation},
		{name: "negative_id", body: `{"items":[{"item_id":-4}]}`, want: http.StatusBadRequest, code: CodeValidation},
		{name: "unknown_item", body: `{"items":[{"item_id":99}]}`, want: http.StatusBadRequest, code: CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := newFakeEngine()
			rec := do(t, testRouter(t, engine), http.MethodPost, "/api/v1/users/alice/interactions", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
			if len(engine.recorded) != 0 {
				t.Error("nothing should be recorded for an invalid request")
			}
		})
	}
}

func TestPutPreferences(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	router := testRouter(t, engine)

	body := `{"artists":["Claude Monet"],"styles":["Impressionism"],"survey":{"style":"Impressionism","theme":"Water"}}`
	rec := do(t, router, http.MethodPut, "/api/v1/users/alice/preferences", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := engine.prefs["alice"]
	if len(got.Artists) != 1 || got.Survey["theme"] != "Water" {
		t.Errorf("preferences = %+v", got)
	}
}

func TestPutPreferences_BadSurveyType(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rec := do(t, testRouter(t, engine), http.MethodPut, "/api/v1/users/alice/preferences", `{"survey":{"colour":"blue"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(engine.prefs) != 0 {
		t.Error("preferences should not be stored")
	}
}

func TestGetState(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.recorded["alice"] = []interactions.Entry{{ItemID: 1}}
	router := testRouter(t, engine)

	rec := do(t, router, http.MethodGet, "/api/v1/users/alice/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var view StateView
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.WindowSize != 3 || view.Engagement != 4 || view.InteractedCount != 1 {
		t.Errorf("state = %+v", view)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/users/bob/state", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", rec.Code)
	}
}

func TestGetItem(t *testing.T) {
	t.Parallel()

	router := testRouter(t, newFakeEngine())

	tests := []struct {
		target string
		want   int
	}{
		{target: "/api/v1/items/2", want: http.StatusOK},
		{target: "/api/v1/items/99", want: http.StatusNotFound},
		{target: "/api/v1/items/abc", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			rec := do(t, router, http.MethodGet, tt.target, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec := do(t, router, http.MethodGet, "/api/v1/items/2", "")
	var item catalog.Item
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Title != "The Starry Night" {
		t.Errorf("title = %q", item.Title)
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	rec := do(t, testRouter(t, newFakeEngine(), WithHandlerConfig(HandlerConfig{Version: "1.2.3"})), http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view StatusView
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Sessions != 3 || view.PagesServed != 7 || view.CatalogItems != 2 || view.Version != "1.2.3" {
		t.Errorf("status = %+v", view)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	t.Parallel()

	router := testRouter(t, newFakeEngine())

	if rec := do(t, router, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}
	if rec := do(t, router, http.MethodDelete, "/api/v1/users/alice/page", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d, want 405", rec.Code)
	}
}
