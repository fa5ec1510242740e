// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/recommend"
)

// ErrInvalidUser is returned for user IDs that cannot form a key.
var ErrInvalidUser = errors.New("storage: invalid user id")

const (
	prefixSession      = "session:"
	prefixInteractions = "interactions:"
)

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Compression enables Snappy block compression.
	Compression bool

	// SessionTTL expires session state that was not saved for this long.
	// Zero keeps state forever.
	SessionTTL time.Duration
}

// BadgerStore persists session state and interaction logs in BadgerDB.
type BadgerStore struct {
	db         *badger.DB
	sessionTTL time.Duration

	// seq orders interaction keys. It starts at the open time so keys
	// written after a restart sort after existing ones.
	seq atomic.Uint64
}

// OpenBadger opens or creates a BadgerStore.
func OpenBadger(opts BadgerOptions) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites
	if opts.Compression {
		bopts.Compression = options.Snappy
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &BadgerStore{db: db, sessionTTL: opts.SessionTTL}
	s.seq.Store(uint64(time.Now().UnixNano())) //nolint:gosec // wall clock is positive

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("State store opened")
	return s, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Backup streams a full backup of the database to w and returns the
// version it is consistent at.
func (s *BadgerStore) Backup(w io.Writer) (uint64, error) {
	return s.db.Backup(w, 0)
}

// Restore loads a stream written by Backup. Restore into an empty store;
// keys present in both keep the newer version.
func (s *BadgerStore) Restore(r io.Reader) error {
	return s.db.Load(r, 256)
}

// RunGC reclaims value log space. It returns nil when nothing was rewritten.
func (s *BadgerStore) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func checkUser(userID string) error {
	if userID == "" || strings.ContainsRune(userID, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}

func sessionKey(userID string) []byte {
	return []byte(prefixSession + userID)
}

// interactionPrefix ends in a NUL byte so "alice" never matches "alice2".
func interactionPrefix(userID string) []byte {
	return []byte(prefixInteractions + userID + "\x00")
}

// LoadSession implements recommend.StateStore.
func (s *BadgerStore) LoadSession(ctx context.Context, userID string) (*recommend.SessionState, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var st *recommend.SessionState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			st = new(recommend.SessionState)
			return json.Unmarshal(val, st)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return st, nil
}

// SaveSession implements recommend.StateStore.
func (s *BadgerStore) SaveSession(ctx context.Context, state *recommend.SessionState) error {
	if state == nil {
		return errors.New("save session: nil state")
	}
	if err := checkUser(state.UserID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(sessionKey(state.UserID), data)
		if s.sessionTTL > 0 {
			e = e.WithTTL(s.sessionTTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// AppendInteractions implements recommend.InteractionStore. The batch is
// committed atomically.
func (s *BadgerStore) AppendInteractions(ctx context.Context, userID string, entries []interactions.Entry) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	prefix := interactionPrefix(userID)
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, en := range entries {
			data, err := json.Marshal(en)
			if err != nil {
				return fmt.Errorf("marshal interaction: %w", err)
			}
			key := binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), s.seq.Add(1))
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append interactions: %w", err)
	}
	return nil
}

// LoadInteractions implements recommend.InteractionStore. Entries come back
// in append order.
func (s *BadgerStore) LoadInteractions(ctx context.Context, userID string) ([]interactions.Entry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	var out []interactions.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = interactionPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var en interactions.Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &en)
			}); err != nil {
				return err
			}
			out = append(out, en)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	return out, nil
}

// DeleteUser removes the session state and interaction log of a user.
func (s *BadgerStore) DeleteUser(ctx context.Context, userID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = interactionPrefix(userID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan interactions: %w", err)
	}
	keys = append(keys, sessionKey(userID))

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// CountSessions returns the number of stored sessions.
func (s *BadgerStore) CountSessions(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSession)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
