// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/metrics"
)

// Guard runs one channel call, typically through a circuit breaker.
type Guard func(ctx context.Context, channel string, call func(context.Context) (ChannelResult, error)) (ChannelResult, error)

// directGuard calls through without protection.
func directGuard(ctx context.Context, _ string, call func(context.Context) (ChannelResult, error)) (ChannelResult, error) {
	return call(ctx)
}

// BlenderOptions configures a Blender.
type BlenderOptions struct {
	Quota          int
	WindowSize     int
	ColdStartTopK  int
	Parallel       bool
	LogisticSquash bool
	PageBudget     time.Duration
	ChannelTimeout time.Duration

	// Guard wraps every produce call. Nil calls channels directly.
	Guard Guard
}

// BlenderOptionsFromConfig derives blender options from the engine config.
func BlenderOptionsFromConfig(cfg *Config) BlenderOptions {
	return BlenderOptions{
		Quota:          cfg.PageQuota,
		WindowSize:     cfg.NumRecommended,
		ColdStartTopK:  cfg.Channels.ColdStart.TopK,
		Parallel:       cfg.Blender.Parallel,
		LogisticSquash: cfg.Blender.LogisticSquash,
		PageBudget:     cfg.Blender.PageBudget,
		ChannelTimeout: cfg.Blender.ChannelTimeout,
	}
}

// ChannelSet is the set of channels of one user session.
type ChannelSet struct {
	// Random is required; it seeds default lists and is the page fallback.
	Random Channel

	// Personal channels compete in the lottery, in this order.
	Personal []Channel

	// ColdStart serves users with preferences but no interactions. Optional.
	ColdStart Channel
}

// all returns every channel, random first.
func (s ChannelSet) all() []Channel {
	out := make([]Channel, 0, len(s.Personal)+2)
	out = append(out, s.Random)
	out = append(out, s.Personal...)
	if s.ColdStart != nil {
		out = append(out, s.ColdStart)
	}
	return out
}

// BlendRequest is the input of one Blender.Recommend call.
type BlendRequest struct {
	UserID          string
	Interacted      ItemSet
	BehaviorUpdated bool
	Timestamp       time.Time
	Rand            *rand.Rand

	// ColdStart routes the page to the cold-start channel.
	ColdStart bool

	// FirstColdStart disables channel-side exclusion on the first cold page.
	FirstColdStart bool
}

// Blender assembles pages from channel candidates. It owns the recommended
// window and the engagement counter. Not safe for concurrent use; the owning
// session serializes calls.
type Blender struct {
	opts       BlenderOptions
	channels   ChannelSet
	window     *Window
	engagement *EngagementTracker
	logger     zerolog.Logger
}

// NewBlender creates a blender over channels.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBlender(channels ChannelSet, opts BlenderOptions, logger zerolog.Logger) (*Blender, error) {
	if channels.Random == nil {
		return nil, ErrNoChannels
	}
	if opts.Quota < 1 {
		return nil, fmt.Errorf("blender quota must be positive, got %d", opts.Quota)
	}
	if opts.Guard == nil {
		opts.Guard = directGuard
	}
	if opts.PageBudget <= 0 {
		opts.PageBudget = 2 * time.Second
	}
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = opts.PageBudget
	}
	if opts.ColdStartTopK <= 0 {
		opts.ColdStartTopK = opts.Quota
	}

	return &Blender{
		opts:       opts,
		channels:   channels,
		window:     NewWindow(opts.WindowSize),
		engagement: NewEngagementTracker(0),
		logger:     logger.With().Str("component", "blender").Logger(),
	}, nil
}

// Window returns the recommended window.
func (b *Blender) Window() *Window { return b.window }

// Engagement returns the engagement tracker.
func (b *Blender) Engagement() *EngagementTracker { return b.engagement }

// Restore replaces the window and engagement counter with persisted values.
func (b *Blender) Restore(window []int64, engagement int) {
	b.window = RestoreWindow(b.opts.WindowSize, window)
	b.engagement = NewEngagementTracker(engagement)
}

// HasColdStart reports whether a cold-start channel is configured.
func (b *Blender) HasColdStart() bool { return b.channels.ColdStart != nil }

// UpdateData forwards signals to every channel. A failing channel keeps its
// previous state; the joined errors are returned for logging.
func (b *Blender) UpdateData(ctx context.Context, signals Signals) error {
	var errs []error
	for _, ch := range b.channels.all() {
		if err := ch.UpdateData(ctx, signals); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Seeds returns the seed lists of seed-holding channels by name.
func (b *Blender) Seeds() map[string][]int64 {
	out := make(map[string][]int64)
	for _, ch := range b.channels.all() {
		if sh, ok := ch.(SeedHolder); ok {
			if seeds := sh.Seeds(); len(seeds) > 0 {
				out[ch.Name()] = seeds
			}
		}
	}
	return out
}

// RestoreSeeds hands persisted seed lists back to their channels.
func (b *Blender) RestoreSeeds(seeds map[string][]int64) {
	for _, ch := range b.channels.all() {
		if sh, ok := ch.(SeedHolder); ok {
			if s, found := seeds[ch.Name()]; found {
				sh.RestoreSeeds(s)
			}
		}
	}
}

// draft is a composed but uncommitted page.
type draft struct {
	items     []PageItem
	quota     int
	degraded  []string
	coldStart bool
	fallback  bool
}

// Recommend builds one page. The random channel is weighted with the counter
// this request will produce, but the counter and the window only change once
// the page is final. A failed page leaves both untouched.
func (b *Blender) Recommend(ctx context.Context, req BlendRequest) (*Page, error) {
	start := time.Now()
	if req.Rand == nil {
		req.Rand = rand.New(rand.NewSource(req.Timestamp.UnixNano())) //nolint:gosec // math/rand is fine for recommendation shuffling
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = start
	}

	engagement := b.engagement.Peek(req.BehaviorUpdated)
	exclude := req.Interacted.Union(b.window.Set())

	budgetCtx, cancel := context.WithTimeout(ctx, b.opts.PageBudget)
	d, err := b.compose(budgetCtx, req, exclude, engagement)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		b.logger.Warn().
			Str("user_id", req.UserID).
			Dur("budget", b.opts.PageBudget).
			Msg("page budget exceeded, serving random channel only")

		d, err = b.composeRandom(ctx, req, exclude)
		if err != nil {
			return nil, err
		}
	}

	b.engagement.Observe(req.BehaviorUpdated)
	b.window.Push(idsOf(d.items)...)

	return &Page{
		UserID:            req.UserID,
		Items:             d.items,
		Short:             len(d.items) < d.quota,
		Fallback:          d.fallback,
		ColdStart:         d.coldStart,
		Degraded:          d.degraded,
		EngagementCounter: engagement,
		LatencyMS:         time.Since(start).Milliseconds(),
		GeneratedAt:       req.Timestamp,
	}, nil
}

// compose produces every channel and draws the page.
func (b *Blender) compose(ctx context.Context, req BlendRequest, exclude ItemSet, engagement int) (draft, error) {
	var degraded []string

	if req.ColdStart && b.channels.ColdStart != nil {
		d, ok, err := b.composeColdStart(ctx, req, exclude)
		if err != nil {
			return draft{}, err
		}
		if ok {
			return d, nil
		}
		degraded = append(degraded, b.channels.ColdStart.Name())
	}

	randomRes, err := b.produce(ctx, b.channels.Random, ProduceRequest{
		UserID:    req.UserID,
		Exclude:   exclude,
		Timestamp: req.Timestamp,
		Quota:     b.opts.Quota,
		Rand:      derive(req.Rand),
	})
	if err != nil {
		degraded = append(degraded, b.channels.Random.Name())
	}
	defaults := randomRes.ItemIDs()

	results, failed := b.produceAll(ctx, req, exclude, defaults)
	degraded = append(degraded, failed...)
	if err := ctx.Err(); err != nil {
		return draft{}, err
	}

	entries := make([]lotteryEntry, 0, len(results)+1)
	for i, res := range results {
		w := GroupWeight(len(res.Groups))
		for _, g := range res.Groups {
			entries = append(entries, lotteryEntry{channel: b.channels.Personal[i].Name(), group: g, weight: w})
		}
	}
	randomAll := randomRes.Flatten()
	entries = append(entries, lotteryEntry{
		channel: b.channels.Random.Name(),
		group:   randomAll,
		weight:  RandomWeight(len(randomAll), engagement),
	})
	if b.opts.LogisticSquash {
		for i := range entries {
			entries[i].weight = Squash(entries[i].weight)
		}
	}

	return draft{
		items:    draw(req.Rand, entries, exclude, b.opts.Quota),
		quota:    b.opts.Quota,
		degraded: degraded,
	}, nil
}

// composeColdStart serves the top cold-start candidates in order. It reports
// false when the channel failed or had nothing to offer.
func (b *Blender) composeColdStart(ctx context.Context, req BlendRequest, exclude ItemSet) (draft, bool, error) {
	preq := ProduceRequest{
		UserID:         req.UserID,
		Exclude:        exclude,
		Timestamp:      req.Timestamp,
		Quota:          b.opts.ColdStartTopK,
		Rand:           derive(req.Rand),
		FirstColdStart: req.FirstColdStart,
	}
	if req.FirstColdStart {
		preq.Exclude = nil
	}

	res, err := b.produce(ctx, b.channels.ColdStart, preq)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return draft{}, false, ctxErr
	}
	if err != nil || res.Len() == 0 {
		return draft{}, false, nil
	}

	entry := lotteryEntry{channel: b.channels.ColdStart.Name(), group: res.Flatten(), weight: 1}
	items := draw(req.Rand, []lotteryEntry{entry}, exclude, b.opts.ColdStartTopK)
	if len(items) == 0 {
		return draft{}, false, nil
	}
	return draft{items: items, quota: b.opts.ColdStartTopK, coldStart: true}, true, nil
}

// composeRandom builds a page from the random channel alone.
func (b *Blender) composeRandom(ctx context.Context, req BlendRequest, exclude ItemSet) (draft, error) {
	res, err := b.produce(ctx, b.channels.Random, ProduceRequest{
		UserID:    req.UserID,
		Exclude:   exclude,
		Timestamp: req.Timestamp,
		Quota:     b.opts.Quota,
		Rand:      derive(req.Rand),
	})
	if err != nil {
		if ctx.Err() != nil {
			return draft{}, ctx.Err()
		}
		return draft{quota: b.opts.Quota, fallback: true, degraded: []string{b.channels.Random.Name()}}, nil
	}

	entry := lotteryEntry{channel: b.channels.Random.Name(), group: res.Flatten(), weight: 1}
	return draft{
		items:    draw(req.Rand, []lotteryEntry{entry}, exclude, b.opts.Quota),
		quota:    b.opts.Quota,
		fallback: true,
	}, nil
}

// produceAll produces every personal channel and returns results aligned
// with channels.Personal plus the names of failed channels.
func (b *Blender) produceAll(ctx context.Context, req BlendRequest, exclude ItemSet, defaults []int64) ([]ChannelResult, []string) {
	personal := b.channels.Personal
	results := make([]ChannelResult, len(personal))
	errs := make([]error, len(personal))

	// Generators are derived up front so the outcome does not depend on
	// goroutine scheduling.
	reqs := make([]ProduceRequest, len(personal))
	for i := range personal {
		reqs[i] = ProduceRequest{
			UserID:       req.UserID,
			Exclude:      exclude,
			Timestamp:    req.Timestamp,
			Quota:        b.opts.Quota,
			Rand:         derive(req.Rand),
			DefaultSeeds: defaults,
		}
	}

	if b.opts.Parallel {
		var wg sync.WaitGroup
		for i, ch := range personal {
			wg.Add(1)
			go func(idx int, c Channel) {
				defer wg.Done()
				results[idx], errs[idx] = b.produce(ctx, c, reqs[idx])
			}(i, ch)
		}
		wg.Wait()
	} else {
		for i, ch := range personal {
			results[i], errs[i] = b.produce(ctx, ch, reqs[i])
		}
	}

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, personal[i].Name())
			results[i] = ChannelResult{}
		}
	}
	return results, failed
}

// produce runs one channel through the guard with the per-channel timeout.
func (b *Blender) produce(ctx context.Context, ch Channel, req ProduceRequest) (ChannelResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.opts.ChannelTimeout)
	defer cancel()

	start := time.Now()
	res, err := b.opts.Guard(callCtx, ch.Name(), func(c context.Context) (ChannelResult, error) {
		return ch.Produce(c, req)
	})
	metrics.RecordChannelProduce(ch.Name(), time.Since(start), res.Len(), err)

	if err != nil {
		b.logger.Warn().
			Str("channel", ch.Name()).
			Str("user_id", req.UserID).
			Err(err).
			Msg("channel produce failed")
		return ChannelResult{}, err
	}
	return res, nil
}

// lotteryEntry is one candidate group competing in the draw.
type lotteryEntry struct {
	channel string
	group   []Candidate
	weight  float64
}

// draw picks up to quota items. Each draw selects a live group with
// probability proportional to its weight and inspects the candidate at its
// cursor; the cursor advances on every inspection so the loop ends once every
// group is exhausted. Excluded and already-picked candidates are skipped.
// When no live group has positive weight, live groups are drawn uniformly.
func draw(rng *rand.Rand, entries []lotteryEntry, exclude ItemSet, quota int) []PageItem {
	cursors := make([]int, len(entries))
	picked := make(ItemSet, quota)
	out := make([]PageItem, 0, quota)
	live := make([]int, 0, len(entries))

	for len(out) < quota {
		live = live[:0]
		total := 0.0
		for i, e := range entries {
			if cursors[i] < len(e.group) {
				live = append(live, i)
				if e.weight > 0 {
					total += e.weight
				}
			}
		}
		if len(live) == 0 {
			break
		}

		idx := live[len(live)-1]
		if total <= 0 {
			idx = live[rng.Intn(len(live))]
		} else {
			r := rng.Float64() * total
			for _, i := range live {
				if entries[i].weight <= 0 {
					continue
				}
				r -= entries[i].weight
				if r < 0 {
					idx = i
					break
				}
			}
			// Rounding can leave r >= 0 after the loop; fall back to the
			// last positive-weight group.
			if r >= 0 {
				for j := len(live) - 1; j >= 0; j-- {
					if entries[live[j]].weight > 0 {
						idx = live[j]
						break
					}
				}
			}
		}

		e := entries[idx]
		c := e.group[cursors[idx]]
		cursors[idx]++

		if exclude.Has(c.ItemID) || picked.Has(c.ItemID) {
			continue
		}
		picked[c.ItemID] = struct{}{}
		out = append(out, PageItem{ItemID: c.ItemID, Label: c.Label, Channel: e.channel, Weight: e.weight})
	}
	return out
}

// derive returns a new generator seeded from rng.
func derive(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewSource(rng.Int63())) //nolint:gosec // math/rand is fine for recommendation shuffling
}

func idsOf(items []PageItem) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ItemID
	}
	return out
}
