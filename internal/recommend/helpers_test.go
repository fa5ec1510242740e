// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/atelier/internal/interactions"
)

// stubChannel returns fixed groups, filtered by the exclusion set unless
// leaky is set.
type stubChannel struct {
	name   string
	groups [][]int64
	err    error
	delay  time.Duration
	leaky  bool

	mu       sync.Mutex
	requests []ProduceRequest
	updates  []Signals
	seeds    []int64
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) UpdateData(_ context.Context, s Signals) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, s)
	return nil
}

func (c *stubChannel) Produce(ctx context.Context, req ProduceRequest) (ChannelResult, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ChannelResult{}, ctx.Err()
		}
	}
	if c.err != nil {
		return ChannelResult{}, c.err
	}

	var res ChannelResult
	for gi, g := range c.groups {
		var group []Candidate
		for _, id := range g {
			if !c.leaky && req.Exclude.Has(id) {
				continue
			}
			group = append(group, Candidate{ItemID: id, Label: fmt.Sprintf("%s: %d", c.name, gi)})
		}
		res.Groups = append(res.Groups, group)
	}
	return res, nil
}

func (c *stubChannel) Seeds() []int64 { return c.seeds }

func (c *stubChannel) RestoreSeeds(seeds []int64) { c.seeds = seeds }

func (c *stubChannel) lastRequest() ProduceRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

// uniformChannel draws quota random items from 1..size minus the exclusion set.
type uniformChannel struct {
	size int64
}

func (c *uniformChannel) Name() string { return ChannelRandom }

func (c *uniformChannel) UpdateData(context.Context, Signals) error { return nil }

func (c *uniformChannel) Produce(_ context.Context, req ProduceRequest) (ChannelResult, error) {
	var pool []int64
	for id := int64(1); id <= c.size; id++ {
		if !req.Exclude.Has(id) {
			pool = append(pool, id)
		}
	}
	req.Rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > req.Quota {
		pool = pool[:req.Quota]
	}
	cands := make([]Candidate, len(pool))
	for i, id := range pool {
		cands[i] = Candidate{ItemID: id, Label: "Random"}
	}
	return Single(cands), nil
}

func seq(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, id)
	}
	return out
}

// memoryStore implements StateStore, InteractionStore and InteractedStore.
type memoryStore struct {
	mu         sync.Mutex
	states     map[string]*SessionState
	logs       map[string][]interactions.Entry
	interacted map[string][]int64
	saves      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		states:     make(map[string]*SessionState),
		logs:       make(map[string][]interactions.Entry),
		interacted: make(map[string][]int64),
	}
}

func (m *memoryStore) LoadSession(_ context.Context, userID string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[userID], nil
}

func (m *memoryStore) SaveSession(_ context.Context, st *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.UserID] = st
	m.saves++
	return nil
}

func (m *memoryStore) AppendInteractions(_ context.Context, userID string, entries []interactions.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[userID] = append(m.logs[userID], entries...)
	return nil
}

func (m *memoryStore) LoadInteractions(_ context.Context, userID string) ([]interactions.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interactions.Entry(nil), m.logs[userID]...), nil
}

func (m *memoryStore) WriteInteracted(_ context.Context, userID string, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interacted[userID] = append([]int64(nil), ids...)
	return nil
}

func (m *memoryStore) ReadInteracted(_ context.Context, userID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.interacted[userID]...), nil
}
