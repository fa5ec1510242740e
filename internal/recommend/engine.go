// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/cache"
	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/metrics"
	"github.com/tomtom215/atelier/internal/resilience"
)

// ChannelFactory builds the channels of a new user session.
type ChannelFactory func(userID string) (ChannelSet, error)

// ItemLookup reports whether an item exists.
type ItemLookup interface {
	Has(id int64) bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStateStore persists session state.
func WithStateStore(s StateStore) Option { return func(e *Engine) { e.states = s } }

// WithInteractionStore persists interaction logs.
func WithInteractionStore(s InteractionStore) Option { return func(e *Engine) { e.logs = s } }

// WithInteractedStore persists interacted sets.
func WithInteractedStore(s InteractedStore) Option { return func(e *Engine) { e.interacted = s } }

// WithItemLookup rejects interactions with unknown items.
func WithItemLookup(l ItemLookup) Option { return func(e *Engine) { e.items = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine owns every user session and routes all work for a user through that
// user's session. It is safe for concurrent use.
type Engine struct {
	config  *Config
	factory ChannelFactory
	logger  zerolog.Logger
	now     func() time.Time

	states     StateStore
	logs       InteractionStore
	interacted InteractedStore
	items      ItemLookup

	sessions *cache.LRU[*Session]

	// regMu guards busy and evicted. A user is busy while its session is
	// being loaded or persisted after eviction; session lookups wait on the
	// channel instead of reading the store mid-transition.
	regMu   sync.Mutex
	busy    map[string]chan struct{}
	evicted []eviction

	breakersMu sync.Mutex
	breakers   map[string]*resilience.Breaker[ChannelResult]

	startedAt      time.Time
	pagesServed    atomic.Int64
	shortPages     atomic.Int64
	fallbackPages  atomic.Int64
	coldStartPages atomic.Int64
	channelErrors  atomic.Int64
	interactionsN  atomic.Int64
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, factory ChannelFactory, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if factory == nil {
		return nil, ErrNoChannels
	}

	e := &Engine{
		config:   cfg.Clone(),
		factory:  factory,
		logger:   logger.With().Str("component", "recommend").Logger(),
		now:      time.Now,
		breakers: make(map[string]*resilience.Breaker[ChannelResult]),
		busy:     make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.startedAt = e.now()
	e.sessions = cache.NewLRU[*Session](cfg.Sessions.MaxSessions, e.onEvict)

	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config { return e.config.Clone() }

// Recommend builds the next page for req.UserID.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req PageRequest) (*Page, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrUnknownUser)
	}
	if req.RequestID == "" {
		req.RequestID = logging.GenerateRequestID()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = e.now()
	}

	s, err := e.lockSession(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	updated := req.BehaviorUpdated || s.pending
	if updated {
		e.reloadInteracted(ctx, s)
	}
	s.pending = false

	cold := s.coldMode()
	page, err := s.blender.Recommend(ctx, BlendRequest{
		UserID:          req.UserID,
		Interacted:      s.interacted,
		BehaviorUpdated: updated,
		Timestamp:       req.Timestamp,
		Rand:            s.rng,
		ColdStart:       cold,
		FirstColdStart:  cold && !s.coldStartServed,
	})
	if err != nil {
		s.pending = updated
		return nil, fmt.Errorf("recommend for user %s: %w", req.UserID, err)
	}

	page.RequestID = req.RequestID
	page.PageIndex = req.PageIndex
	if page.ColdStart {
		s.coldStartServed = true
	}
	s.pages++
	s.dirty = true
	s.updatedAt = req.Timestamp

	e.recordPage(page)

	e.logger.Debug().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Int("items", len(page.Items)).
		Int("engagement", page.EngagementCounter).
		Bool("short", page.Short).
		Bool("fallback", page.Fallback).
		Bool("cold_start", page.ColdStart).
		Int64("latency_ms", page.LatencyMS).
		Msg("page served")

	return page, nil
}

// recordPage updates counters and metrics for a served page.
func (e *Engine) recordPage(page *Page) {
	e.pagesServed.Add(1)
	if page.Short {
		e.shortPages.Add(1)
	}
	if page.Fallback {
		e.fallbackPages.Add(1)
	}
	if page.ColdStart {
		e.coldStartPages.Add(1)
	}
	e.channelErrors.Add(int64(len(page.Degraded)))

	metrics.RecordPage(
		metrics.PageOutcome(page.Short, page.Fallback, len(page.Items)),
		time.Duration(page.LatencyMS)*time.Millisecond,
		len(page.Items),
	)
}

// RecordInteractions appends entries to the user's log, refreshes channel
// data and marks the behavior as updated for the next page.
func (e *Engine) RecordInteractions(ctx context.Context, userID string, entries []interactions.Entry) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrUnknownUser)
	}
	if len(entries) == 0 {
		return nil
	}

	now := e.now()
	clean := make([]interactions.Entry, len(entries))
	for i, en := range entries {
		if e.items != nil && !e.items.Has(en.ItemID) {
			return fmt.Errorf("%w: %d", catalog.ErrUnknownItem, en.ItemID)
		}
		if en.Timestamp.IsZero() {
			en.Timestamp = now
		}
		clean[i] = en
	}

	s, err := e.lockSession(ctx, userID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if e.logs != nil {
		if err := e.logs.AppendInteractions(ctx, userID, clean); err != nil {
			return fmt.Errorf("append interactions: %w", err)
		}
	}
	s.log.Append(clean...)
	e.refresh(ctx, s)

	s.pending = true
	s.dirty = true
	s.updatedAt = now

	e.interactionsN.Add(int64(len(clean)))
	metrics.InteractionsRecorded.Add(float64(len(clean)))
	return nil
}

// SetPreferences stores survey answers and refreshes channel data.
func (e *Engine) SetPreferences(ctx context.Context, userID string, prefs Preferences) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrUnknownUser)
	}
	s, err := e.lockSession(ctx, userID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.prefs = prefs
	e.refresh(ctx, s)
	s.dirty = true
	s.updatedAt = e.now()
	return nil
}

// State returns the persisted view of a user's session.
func (e *Engine) State(ctx context.Context, userID string) (*SessionState, error) {
	for {
		s, ok := e.sessions.Get(userID)
		if !ok {
			break
		}
		s.mu.Lock()
		if !s.evicted {
			defer s.mu.Unlock()
			return s.snapshot(), nil
		}
		s.mu.Unlock()
		if err := e.awaitIdle(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := e.awaitIdle(ctx, userID); err != nil {
		return nil, err
	}
	if e.states != nil {
		st, err := e.states.LoadSession(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if st != nil {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
}

// Flush persists every modified in-memory session and returns how many were
// written.
func (e *Engine) Flush(ctx context.Context) (int, error) {
	if e.states == nil {
		return 0, nil
	}

	written := 0
	var errs []error
	for _, s := range e.sessions.Values() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		// The save runs under s.mu so it cannot land after a newer one
		// written on eviction.
		s.mu.Lock()
		if !s.dirty || s.evicted {
			s.mu.Unlock()
			continue
		}
		st := s.snapshot()
		if err := e.states.SaveSession(ctx, st); err != nil {
			s.mu.Unlock()
			errs = append(errs, fmt.Errorf("save session %s: %w", st.UserID, err))
			continue
		}
		s.dirty = false
		s.mu.Unlock()
		written++
	}
	return written, errors.Join(errs...)
}

// Status reports engine counters and channel breaker states.
func (e *Engine) Status() EngineStatus {
	e.breakersMu.Lock()
	breakers := make(map[string]string, len(e.breakers))
	for name, b := range e.breakers {
		breakers[name] = b.State()
	}
	e.breakersMu.Unlock()

	return EngineStatus{
		Sessions:       e.sessions.Len(),
		PagesServed:    e.pagesServed.Load(),
		ShortPages:     e.shortPages.Load(),
		FallbackPages:  e.fallbackPages.Load(),
		ColdStartPages: e.coldStartPages.Load(),
		ChannelErrors:  e.channelErrors.Load(),
		Interactions:   e.interactionsN.Load(),
		Breakers:       breakers,
		StartedAt:      e.startedAt,
	}
}

// lockSession returns the live session for userID with s.mu held. A session
// evicted between lookup and lock is skipped and looked up again.
func (e *Engine) lockSession(ctx context.Context, userID string) (*Session, error) {
	for {
		s, err := e.session(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !s.evicted {
			return s, nil
		}
		s.mu.Unlock()
	}
}

// session returns the live session for userID, loading it when absent. At
// most one session per user exists at a time: a user being loaded or
// persisted after eviction is waited for, never loaded twice.
func (e *Engine) session(ctx context.Context, userID string) (*Session, error) {
	for {
		if s, ok := e.sessions.Get(userID); ok {
			return s, nil
		}

		e.regMu.Lock()
		if s, ok := e.sessions.Get(userID); ok {
			e.regMu.Unlock()
			return s, nil
		}
		if wait, ok := e.busy[userID]; ok {
			e.regMu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		e.busy[userID] = done
		e.regMu.Unlock()

		s, err := e.loadSession(ctx, userID)

		e.regMu.Lock()
		delete(e.busy, userID)
		close(done)
		var victims []eviction
		if err == nil {
			// onEvict runs inside AddIfAbsent with regMu held.
			e.sessions.AddIfAbsent(userID, s)
			victims = e.evicted
			e.evicted = nil
		}
		e.regMu.Unlock()
		if err != nil {
			return nil, err
		}

		e.persistEvicted(victims)
		metrics.SessionsActive.Set(float64(e.sessions.Len()))
		return s, nil
	}
}

// awaitIdle blocks until userID is neither loading nor being persisted.
func (e *Engine) awaitIdle(ctx context.Context, userID string) error {
	for {
		e.regMu.Lock()
		wait, ok := e.busy[userID]
		e.regMu.Unlock()
		if !ok {
			return nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// loadSession builds a session and restores persisted state and logs.
func (e *Engine) loadSession(ctx context.Context, userID string) (*Session, error) {
	set, err := e.factory(userID)
	if err != nil {
		return nil, fmt.Errorf("build channels for user %s: %w", userID, err)
	}

	opts := BlenderOptionsFromConfig(e.config)
	opts.Guard = e.guard
	blender, err := NewBlender(set, opts, e.logger)
	if err != nil {
		return nil, err
	}

	s := newSession(userID, blender, e.config.Seed)

	var st *SessionState
	if e.states != nil {
		st, err = e.states.LoadSession(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", userID, err)
		}
		if st != nil {
			s.restore(st)
		}
	}
	if e.logs != nil {
		entries, err := e.logs.LoadInteractions(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load interactions %s: %w", userID, err)
		}
		s.log = interactions.NewLog(entries...)
	}

	if s.log.Len() > 0 || !s.prefs.IsZero() {
		e.refresh(ctx, s)
	}
	if st != nil {
		blender.RestoreSeeds(st.Seeds)
	}
	return s, nil
}

// refresh writes the capped interacted set and forwards fresh signals to
// every channel. Caller holds s.mu.
func (e *Engine) refresh(ctx context.Context, s *Session) {
	unique := s.log.Unique()
	top := interactions.IDs(capEntries(unique, e.config.NumInteracted))

	if e.interacted != nil {
		if err := e.interacted.WriteInteracted(ctx, s.userID, top); err != nil {
			e.logger.Warn().Err(err).Str("user_id", s.userID).Msg("failed to write interacted set")
		}
	}

	signals := Signals{
		UserID:      s.userID,
		Log:         unique,
		Interacted:  NewItemSet(top...),
		Preferences: s.prefs,
		Timestamp:   e.now(),
	}
	if err := s.blender.UpdateData(ctx, signals); err != nil {
		e.logger.Warn().Err(err).Str("user_id", s.userID).Msg("channel update failed")
	}
}

// reloadInteracted merges the stored interacted set into the session.
// Without a store, the set is derived from the log. Caller holds s.mu.
func (e *Engine) reloadInteracted(ctx context.Context, s *Session) {
	if e.interacted != nil {
		ids, err := e.interacted.ReadInteracted(ctx, s.userID)
		if err == nil {
			s.interacted.Add(ids...)
			return
		}
		e.logger.Warn().Err(err).Str("user_id", s.userID).Msg("failed to read interacted set, using log")
	}
	s.interacted.Add(interactions.IDs(s.log.Recent(e.config.NumInteracted))...)
}

// guard runs a channel call through that channel's circuit breaker.
func (e *Engine) guard(ctx context.Context, channel string, call func(context.Context) (ChannelResult, error)) (ChannelResult, error) {
	return e.breaker(channel).Execute(func() (ChannelResult, error) {
		return call(ctx)
	})
}

func (e *Engine) breaker(channel string) *resilience.Breaker[ChannelResult] {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()

	b, ok := e.breakers[channel]
	if !ok {
		b = resilience.NewBreaker[ChannelResult](resilience.BreakerConfig{
			Name:             "channel-" + channel,
			MaxRequests:      1,
			Timeout:          e.config.Breaker.OpenTimeout,
			FailureThreshold: e.config.Breaker.FailureThreshold,
		}, e.logger)
		e.breakers[channel] = b
	}
	return b
}

// eviction is a session pushed out of the registry and not yet persisted.
type eviction struct {
	userID  string
	session *Session
	done    chan struct{}
}

// onEvict marks userID busy so no lookup reloads it before its state is
// saved. It runs inside LRU.AddIfAbsent, which session calls with regMu held.
func (e *Engine) onEvict(userID string, s *Session) {
	metrics.SessionEvictions.Inc()
	done := make(chan struct{})
	e.busy[userID] = done
	e.evicted = append(e.evicted, eviction{userID: userID, session: s, done: done})
}

// persistEvicted saves each evicted session once its in-flight work is done,
// then releases the user for reloading.
func (e *Engine) persistEvicted(victims []eviction) {
	for _, v := range victims {
		s := v.session
		s.mu.Lock()
		s.evicted = true
		if e.states != nil {
			ctx, cancel := context.WithTimeout(context.Background(), e.config.Sessions.PersistTimeout)
			if err := e.states.SaveSession(ctx, s.snapshot()); err != nil {
				e.logger.Error().Err(err).Str("user_id", v.userID).Msg("failed to persist evicted session")
			}
			cancel()
		}
		s.mu.Unlock()

		e.regMu.Lock()
		delete(e.busy, v.userID)
		e.regMu.Unlock()
		close(v.done)
	}
}

func capEntries(entries []interactions.Entry, n int) []interactions.Entry {
	if n >= 0 && n < len(entries) {
		return entries[:n]
	}
	return entries
}
