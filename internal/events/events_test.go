// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/logging"
)

// recordingApplier captures applied entries and signals each call.
type recordingApplier struct {
	mu      sync.Mutex
	entries map[string][]interactions.Entry
	calls   int
	err     error
	applied chan interactions.Entry
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{
		entries: make(map[string][]interactions.Entry),
		applied: make(chan interactions.Entry, 64),
	}
}

func (a *recordingApplier) RecordInteractions(_ context.Context, userID string, entries []interactions.Entry) error {
	a.mu.Lock()
	a.calls++
	err := a.err
	if err == nil {
		a.entries[userID] = append(a.entries[userID], entries...)
	}
	a.mu.Unlock()

	if err != nil {
		return err
	}
	for _, en := range entries {
		a.applied <- en
	}
	return nil
}

func (a *recordingApplier) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func waitApplied(t *testing.T, a *recordingApplier, n int) []interactions.Entry {
	t.Helper()
	out := make([]interactions.Entry, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case en := <-a.applied:
			out = append(out, en)
		case <-timeout:
			t.Fatalf("applied %d of %d entries before timeout", len(out), n)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.CloseTimeout = time.Second
	return cfg
}

// startBus opens a gochannel transport and runs a router until the test ends.
func startBus(t *testing.T, cfg Config, applier Applier) (*Transport, *Consumer) {
	t.Helper()

	wmLogger := logging.NewWatermillLogger(zerolog.Nop())
	transport, err := NewTransport(cfg, wmLogger)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	consumer := NewConsumer(applier, cfg.Topic, zerolog.Nop())
	router, err := NewRouter(cfg, transport, consumer, wmLogger)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = router.Run(ctx)
	}()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		cancel()
		_ = router.Close()
		<-done
		_ = transport.Close()
	})
	return transport, consumer
}

func TestInteractionRecorded_Validate(t *testing.T) {
	t.Parallel()

	base := func() *InteractionRecorded {
		return NewInteractionRecorded("alice", interactions.Entry{ItemID: 7, Timestamp: time.Now()}, "api")
	}

	tests := []struct {
		name    string
		mutate  func(e *InteractionRecorded)
		wantErr bool
	}{
		{name: "valid", mutate: func(*InteractionRecorded) {}},
		{name: "no_event_id", mutate: func(e *InteractionRecorded) { e.EventID = "" }, wantErr: true},
		{name: "no_user", mutate: func(e *InteractionRecorded) { e.UserID = "" }, wantErr: true},
		{name: "negative_item", mutate: func(e *InteractionRecorded) { e.ItemID = -1 }, wantErr: true},
		{name: "future_schema", mutate: func(e *InteractionRecorded) { e.SchemaVersion = SchemaVersion + 1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := base()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("error %v does not wrap ErrInvalidEvent", err)
			}
		})
	}
}

func TestToMessage(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := NewInteractionRecorded("alice", interactions.Entry{ItemID: 7, Timestamp: ts}, "kiosk")

	msg, err := ToMessage(event)
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}
	if msg.UUID != event.EventID {
		t.Errorf("UUID = %q, want event ID %q", msg.UUID, event.EventID)
	}
	if msg.Metadata.Get(MetadataUserID) != "alice" || msg.Metadata.Get(MetadataSource) != "kiosk" {
		t.Errorf("metadata = %v", msg.Metadata)
	}

	got, err := FromMessage(msg)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	if got.Entry() != (interactions.Entry{ItemID: 7, Timestamp: ts}) {
		t.Errorf("entry = %+v", got.Entry())
	}

	if _, err := FromMessage(message.NewMessage("x", []byte("{not json"))); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("malformed payload error = %v, want ErrInvalidEvent", err)
	}
}

func TestConsumer_Handle(t *testing.T) {
	t.Parallel()

	valid, err := ToMessage(NewInteractionRecorded("alice", interactions.Entry{ItemID: 3, Timestamp: time.Now()}, ""))
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}

	tests := []struct {
		name       string
		msg        *message.Message
		applyErr   error
		wantErr    bool
		wantStats  ConsumerStats
		wantCalled bool
	}{
		{name: "applied", msg: valid, wantStats: ConsumerStats{Applied: 1}, wantCalled: true},
		{name: "malformed", msg: message.NewMessage("m", []byte(`{"event_id":""}`)), wantStats: ConsumerStats{Dropped: 1}},
		{name: "unknown_item", msg: valid, applyErr: fmt.Errorf("%w: 3", catalog.ErrUnknownItem), wantStats: ConsumerStats{Dropped: 1}, wantCalled: true},
		{name: "transient", msg: valid, applyErr: errors.New("disk full"), wantErr: true, wantStats: ConsumerStats{Failed: 1}, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			applier := newRecordingApplier()
			applier.err = tt.applyErr
			c := NewConsumer(applier, DefaultTopic, zerolog.Nop())

			err := c.Handle(tt.msg)
			if tt.wantErr != (err != nil) {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := c.Stats(); got != tt.wantStats {
				t.Errorf("Stats() = %+v, want %+v", got, tt.wantStats)
			}
			if called := applier.callCount() > 0; called != tt.wantCalled {
				t.Errorf("applier called = %v, want %v", called, tt.wantCalled)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "nats_without_url", mutate: func(c *Config) { c.Transport = TransportNATS }, wantErr: true},
		{name: "nats_with_url", mutate: func(c *Config) { c.Transport = TransportNATS; c.NATSURL = "nats://localhost:4222" }},
		{name: "unknown_transport", mutate: func(c *Config) { c.Transport = "kafka" }, wantErr: true},
		{name: "no_topic", mutate: func(c *Config) { c.Topic = "" }, wantErr: true},
		{name: "poison_equals_topic", mutate: func(c *Config) { c.PoisonTopic = c.Topic }, wantErr: true},
		{name: "zero_subscribers", mutate: func(c *Config) { c.Subscribers = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); tt.wantErr != (err != nil) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBus_PublishAndApply(t *testing.T) {
	t.Parallel()

	applier := newRecordingApplier()
	cfg := testConfig()
	transport, consumer := startBus(t, cfg, applier)

	pub := NewPublisher(transport.Publisher, cfg.Topic, "api", zerolog.Nop())
	entries := []interactions.Entry{
		{ItemID: 4, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ItemID: 9, Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	if err := pub.PublishInteractions(context.Background(), "alice", entries); err != nil {
		t.Fatalf("PublishInteractions: %v", err)
	}

	// gochannel does not order deliveries across Publish calls.
	got := waitApplied(t, applier, 2)
	sort.Slice(got, func(i, j int) bool { return got[i].ItemID < got[j].ItemID })
	if got[0] != entries[0] || got[1] != entries[1] {
		t.Errorf("applied = %+v, want %+v", got, entries)
	}
	if s := consumer.Stats(); s.Applied != 2 {
		t.Errorf("Stats() = %+v, want 2 applied", s)
	}
}

func TestPublisher_Closed(t *testing.T) {
	t.Parallel()

	transport, err := NewTransport(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	defer transport.Close()

	pub := NewPublisher(transport.Publisher, DefaultTopic, "api", zerolog.Nop())
	_ = pub.Close()

	err = pub.PublishInteractions(context.Background(), "alice", []interactions.Entry{{ItemID: 1}})
	if !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("error = %v, want ErrPublisherClosed", err)
	}
}

func TestRouter_DropsDuplicates(t *testing.T) {
	t.Parallel()

	applier := newRecordingApplier()
	cfg := testConfig()
	transport, consumer := startBus(t, cfg, applier)

	dup, err := ToMessage(NewInteractionRecorded("alice", interactions.Entry{ItemID: 1, Timestamp: time.Now()}, ""))
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}
	sentinel, err := ToMessage(NewInteractionRecorded("alice", interactions.Entry{ItemID: 2, Timestamp: time.Now()}, ""))
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}

	if err := transport.Publisher.Publish(cfg.Topic, dup); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitApplied(t, applier, 1)

	if err := transport.Publisher.Publish(cfg.Topic, dup.Copy()); err != nil {
		t.Fatalf("Publish copy: %v", err)
	}
	if err := transport.Publisher.Publish(cfg.Topic, sentinel); err != nil {
		t.Fatalf("Publish sentinel: %v", err)
	}
	if got := waitApplied(t, applier, 1); got[0].ItemID != 2 {
		t.Errorf("applied item %d, want sentinel 2", got[0].ItemID)
	}

	select {
	case en := <-applier.applied:
		t.Errorf("duplicate applied: %+v", en)
	case <-time.After(200 * time.Millisecond):
	}
	if s := consumer.Stats(); s.Applied != 2 {
		t.Errorf("Stats() = %+v, want 2 applied", s)
	}
}

func TestRouter_PoisonAfterRetries(t *testing.T) {
	t.Parallel()

	applier := newRecordingApplier()
	applier.err = errors.New("state store unavailable")

	cfg := testConfig()
	cfg.RetryMaxRetries = 1
	cfg.PoisonTopic = "atelier.interactions.poison"
	transport, _ := startBus(t, cfg, applier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poisoned, err := transport.Subscriber.Subscribe(ctx, cfg.PoisonTopic)
	if err != nil {
		t.Fatalf("Subscribe poison: %v", err)
	}

	msg, err := ToMessage(NewInteractionRecorded("alice", interactions.Entry{ItemID: 5, Timestamp: time.Now()}, ""))
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}
	if err := transport.Publisher.Publish(cfg.Topic, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case p := <-poisoned:
		p.Ack()
		if p.UUID != msg.UUID {
			t.Errorf("poisoned UUID = %q, want %q", p.UUID, msg.UUID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event did not reach the poison topic")
	}

	if calls := applier.callCount(); calls != 2 {
		t.Errorf("applier calls = %d, want 2 (initial + 1 retry)", calls)
	}
}
