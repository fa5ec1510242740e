// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/wal"
)

// switchPublisher fails while down is set and records published UUIDs.
type switchPublisher struct {
	mu    sync.Mutex
	down  bool
	uuids []string
}

func (p *switchPublisher) Publish(_ string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return errors.New("nats: connection closed")
	}
	for _, m := range msgs {
		p.uuids = append(p.uuids, m.UUID)
	}
	return nil
}

func (p *switchPublisher) Close() error { return nil }

func (p *switchPublisher) setDown(down bool) {
	p.mu.Lock()
	p.down = down
	p.mu.Unlock()
}

func (p *switchPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.uuids...)
}

func openOutbox(t *testing.T) *wal.BadgerWAL {
	t.Helper()
	cfg := wal.DefaultConfig()
	cfg.InMemory = true
	cfg.SyncWrites = false
	cfg.RetryBackoff = time.Millisecond
	w, err := wal.Open(cfg)
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestDurablePublisher_Success(t *testing.T) {
	t.Parallel()

	outbox := openOutbox(t)
	sp := &switchPublisher{}
	d := NewDurablePublisher(NewPublisher(sp, DefaultTopic, "api", zerolog.Nop()), outbox, zerolog.Nop())

	entries := []interactions.Entry{{ItemID: 1, Timestamp: time.Now()}, {ItemID: 2, Timestamp: time.Now()}}
	if err := d.PublishInteractions(context.Background(), "alice", entries); err != nil {
		t.Fatalf("PublishInteractions: %v", err)
	}

	if got := len(sp.published()); got != 2 {
		t.Errorf("published %d messages, want 2", got)
	}
	pending, err := outbox.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 after a confirmed publish", len(pending))
	}
	if s := outbox.Stats(); s.Processing != 0 {
		t.Errorf("claims left = %d, want 0", s.Processing)
	}
}

func TestDurablePublisher_ReplaysWithSameIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	outbox := openOutbox(t)
	sp := &switchPublisher{down: true}
	d := NewDurablePublisher(NewPublisher(sp, DefaultTopic, "api", zerolog.Nop()), outbox, zerolog.Nop())

	entries := []interactions.Entry{{ItemID: 5, Timestamp: time.Now()}}
	if err := d.PublishInteractions(ctx, "bob", entries); err != nil {
		t.Fatalf("PublishInteractions = %v, want nil once durable", err)
	}

	pending, err := outbox.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("pending = %+v, want one entry with one attempt", pending)
	}
	var b Batch
	if err := pending[0].UnmarshalPayload(&b); err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	if len(b.Events) != 1 || b.Events[0].UserID != "bob" || b.Events[0].ItemID != 5 {
		t.Fatalf("batch = %+v", b)
	}

	sp.setDown(false)
	if err := d.PublishEntry(ctx, pending[0]); err != nil {
		t.Fatalf("PublishEntry: %v", err)
	}
	got := sp.published()
	if len(got) != 1 || got[0] != b.Events[0].EventID {
		t.Errorf("replayed UUIDs = %v, want [%s]", got, b.Events[0].EventID)
	}
}

func TestDurablePublisher_RetryLoopDelivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	outbox := openOutbox(t)
	sp := &switchPublisher{down: true}
	d := NewDurablePublisher(NewPublisher(sp, DefaultTopic, "api", zerolog.Nop()), outbox, zerolog.Nop())

	if err := d.PublishInteractions(ctx, "carol", []interactions.Entry{{ItemID: 9, Timestamp: time.Now()}}); err != nil {
		t.Fatalf("PublishInteractions: %v", err)
	}
	sp.setDown(false)

	// Wait out the backoff of the failed first attempt.
	time.Sleep(wal.Backoff(outbox.Config().RetryBackoff, 1) + 50*time.Millisecond)

	res := wal.NewRetryLoop(outbox, d, zerolog.Nop()).RunPass(ctx)
	if res.Delivered != 1 {
		t.Fatalf("RunPass = %+v, want 1 delivered", res)
	}
	if got := len(sp.published()); got != 1 {
		t.Errorf("published = %d, want 1", got)
	}
}

func TestDurablePublisher_BadEntry(t *testing.T) {
	t.Parallel()

	d := NewDurablePublisher(NewPublisher(&switchPublisher{}, DefaultTopic, "api", zerolog.Nop()), openOutbox(t), zerolog.Nop())
	err := d.PublishEntry(context.Background(), &wal.Entry{ID: "x", Payload: []byte(`{"events": 3}`)})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("PublishEntry error = %v, want ErrInvalidEvent", err)
	}
}
