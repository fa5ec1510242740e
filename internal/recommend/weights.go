// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import "math"

// GroupWeight is the lottery weight of each group of a channel that returned
// n groups.
func GroupWeight(n int) float64 {
	return 1 / float64(max(1, n))
}

// RandomWeight is the lottery weight of the random channel, growing linearly
// with the engagement counter.
func RandomWeight(size, engagement int) float64 {
	return 1 / float64(max(1, size)) * float64(max(0, engagement))
}

// Squash maps w into (0, 1) with the logistic function.
func Squash(w float64) float64 {
	return 1 / (1 + math.Exp(-w))
}
