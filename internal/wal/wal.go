// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package wal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/metrics"
)

// Errors
var (
	ErrWALClosed     = errors.New("wal is closed")
	ErrNilEvent      = errors.New("event is nil")
	ErrEmptyEntryID  = errors.New("entry ID is empty")
	ErrEntryNotFound = errors.New("entry not found")
)

const prefixPending = "pending:"

// Entry is one persisted event with its delivery bookkeeping.
type Entry struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`

	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// UnmarshalPayload decodes the payload into v.
func (e *Entry) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Stats holds counters since Open.
type Stats struct {
	TotalWrites   int64
	TotalConfirms int64
	TotalRetries  int64
	TotalDropped  int64
	Processing    int
}

// BadgerWAL stores pending entries in BadgerDB until they are confirmed.
//
// processing holds in-process claims so the retry loop never replays an
// entry whose first publish is still in flight.
type BadgerWAL struct {
	db     *badger.DB
	config Config

	totalWrites   atomic.Int64
	totalConfirms atomic.Int64
	totalRetries  atomic.Int64
	totalDropped  atomic.Int64

	mu     sync.RWMutex
	closed bool

	processing sync.Map
}

// Open opens (or creates) the outbox database.
func Open(cfg Config) (*BadgerWAL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid WAL config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Compression = options.Snappy
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Int("max_retries", cfg.MaxRetries).
		Dur("entry_ttl", cfg.EntryTTL).
		Msg("Interaction outbox opened")

	return &BadgerWAL{db: db, config: cfg}, nil
}

// Config returns the configuration the outbox was opened with.
func (w *BadgerWAL) Config() Config { return w.config }

func (w *BadgerWAL) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWALClosed
	}
	return nil
}

// Write persists event as a new pending entry and returns its ID.
func (w *BadgerWAL) Write(ctx context.Context, event any) (string, error) {
	return w.write(ctx, event, false)
}

// WriteClaimed is Write with the new entry already claimed by the caller,
// who must ReleaseEntry once its own publish attempt is settled.
func (w *BadgerWAL) WriteClaimed(ctx context.Context, event any) (string, error) {
	return w.write(ctx, event, true)
}

func (w *BadgerWAL) write(ctx context.Context, event any, claim bool) (string, error) {
	if err := w.checkOpen(); err != nil {
		return "", err
	}
	if event == nil {
		return "", ErrNilEvent
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("entry id: %w", err)
	}
	entry := &Entry{
		ID:        id.String(),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	if claim {
		w.processing.Store(entry.ID, time.Now())
	}
	err = w.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(pendingKey(entry.ID), data).WithTTL(w.config.EntryTTL))
	})
	if err != nil {
		w.processing.Delete(entry.ID)
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	w.totalWrites.Add(1)
	metrics.RecordWALEntry("written")
	return entry.ID, nil
}

// Confirm removes a delivered entry.
func (w *BadgerWAL) Confirm(_ context.Context, entryID string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	key := pendingKey(entryID)
	err := w.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("get pending entry: %w", err)
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	w.totalConfirms.Add(1)
	metrics.RecordWALEntry("confirmed")
	return nil
}

// GetPending returns every pending entry in write order from one consistent
// snapshot.
func (w *BadgerWAL) GetPending(ctx context.Context) ([]*Entry, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				logging.Warn().
					Err(err).
					Str("key", string(bytes.TrimPrefix(it.Item().Key(), []byte(prefixPending)))).
					Msg("Skipping unreadable outbox entry")
				continue
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateAttempt records a failed delivery attempt.
func (w *BadgerWAL) UpdateAttempt(_ context.Context, entryID, lastError string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	key := pendingKey(entryID)
	err := w.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get pending entry: %w", err)
		}

		var e Entry
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}
		e.Attempts++
		e.LastAttemptAt = time.Now().UTC()
		e.LastError = lastError

		data, err := json.Marshal(&e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		// Keep the original expiry.
		ne := badger.NewEntry(key, data)
		if exp := item.ExpiresAt(); exp > 0 {
			if ttl := time.Until(time.Unix(int64(exp), 0)); ttl > 0 { //nolint:gosec // badger expiry fits int64
				ne = ne.WithTTL(ttl)
			}
		}
		return txn.SetEntry(ne)
	})
	if err != nil {
		return err
	}

	w.totalRetries.Add(1)
	metrics.RecordWALEntry("retried")
	return nil
}

// DeleteEntry drops an entry that will never be delivered.
func (w *BadgerWAL) DeleteEntry(_ context.Context, entryID string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	if err := w.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pendingKey(entryID))
	}); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	w.totalDropped.Add(1)
	metrics.RecordWALEntry("dropped")
	return nil
}

// TryClaimEntry claims entryID for processing. It returns false when another
// goroutine holds the claim.
func (w *BadgerWAL) TryClaimEntry(entryID string) bool {
	_, loaded := w.processing.LoadOrStore(entryID, time.Now())
	return !loaded
}

// ReleaseEntry releases a claim taken by TryClaimEntry or WriteClaimed.
func (w *BadgerWAL) ReleaseEntry(entryID string) {
	w.processing.Delete(entryID)
}

// Stats returns counters since Open.
func (w *BadgerWAL) Stats() Stats {
	processing := 0
	w.processing.Range(func(_, _ any) bool {
		processing++
		return true
	})
	return Stats{
		TotalWrites:   w.totalWrites.Load(),
		TotalConfirms: w.totalConfirms.Load(),
		TotalRetries:  w.totalRetries.Load(),
		TotalDropped:  w.totalDropped.Load(),
		Processing:    processing,
	}
}

// RunGC reclaims value log space. It returns nil when nothing was rewritten.
func (w *BadgerWAL) RunGC(discardRatio float64) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	err := w.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close closes the database. Further calls return ErrWALClosed.
func (w *BadgerWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWALClosed
	}
	w.closed = true

	s := w.Stats()
	logging.Info().
		Int64("writes", s.TotalWrites).
		Int64("confirms", s.TotalConfirms).
		Int64("retries", s.TotalRetries).
		Int64("dropped", s.TotalDropped).
		Msg("Interaction outbox closed")
	return w.db.Close()
}

func pendingKey(id string) []byte {
	return []byte(prefixPending + id)
}
