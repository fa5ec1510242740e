// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/atelier/internal/recommend"
)

// Chain produces its primary channel and consults the fallbacks, in order,
// only when the primary yields no candidates. It reports the primary's name.
type Chain struct {
	primary   recommend.Channel
	fallbacks []recommend.Channel
}

// NewChain wraps primary with fallbacks.
func NewChain(primary recommend.Channel, fallbacks ...recommend.Channel) *Chain {
	return &Chain{primary: primary, fallbacks: fallbacks}
}

// Name implements recommend.Channel.
func (c *Chain) Name() string { return c.primary.Name() }

// UpdateData forwards signals to every channel of the chain.
func (c *Chain) UpdateData(ctx context.Context, signals recommend.Signals) error {
	var errs []error
	if err := c.primary.UpdateData(ctx, signals); err != nil {
		errs = append(errs, err)
	}
	for _, fb := range c.fallbacks {
		if err := fb.UpdateData(ctx, signals); err != nil {
			errs = append(errs, fmt.Errorf("fallback %s: %w", fb.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Produce implements recommend.Channel. A primary error is returned only when
// no fallback produced candidates either.
func (c *Chain) Produce(ctx context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	res, err := c.primary.Produce(ctx, req)
	if err == nil && res.Len() > 0 {
		return res, nil
	}
	primaryErr := err

	for _, fb := range c.fallbacks {
		if ctx.Err() != nil {
			return recommend.ChannelResult{}, ctx.Err()
		}
		fres, ferr := fb.Produce(ctx, req)
		if ferr != nil {
			continue
		}
		if fres.Len() > 0 {
			return fres, nil
		}
	}

	if primaryErr != nil {
		return recommend.ChannelResult{}, primaryErr
	}
	return recommend.ChannelResult{}, nil
}

// Seeds implements recommend.SeedHolder for seed-holding primaries.
func (c *Chain) Seeds() []int64 {
	if sh, ok := c.primary.(recommend.SeedHolder); ok {
		return sh.Seeds()
	}
	return nil
}

// RestoreSeeds implements recommend.SeedHolder for seed-holding primaries.
func (c *Chain) RestoreSeeds(seeds []int64) {
	if sh, ok := c.primary.(recommend.SeedHolder); ok {
		sh.RestoreSeeds(seeds)
	}
}
