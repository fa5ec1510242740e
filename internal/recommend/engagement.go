// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

// EngagementTracker counts consecutive page requests without new interaction.
type EngagementTracker struct {
	count int
}

// NewEngagementTracker starts the counter at initial, clamped at zero.
func NewEngagementTracker(initial int) *EngagementTracker {
	return &EngagementTracker{count: max(0, initial)}
}

// Peek returns the counter Observe would produce without changing it.
func (t *EngagementTracker) Peek(behaviorUpdated bool) int {
	if behaviorUpdated {
		return 0
	}
	return t.count + 1
}

// Observe records one page request and returns the updated counter: reset to
// zero when behavior changed, incremented otherwise.
func (t *EngagementTracker) Observe(behaviorUpdated bool) int {
	if behaviorUpdated {
		t.count = 0
	} else {
		t.count++
	}
	return t.count
}

// Count returns the current counter.
func (t *EngagementTracker) Count() int { return t.count }
