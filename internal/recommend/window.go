// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

// Window is a bounded FIFO of recently recommended item IDs.
// Pushing into a full window evicts the oldest entry. Not safe for
// concurrent use; the owning session serializes access.
type Window struct {
	buf    []int64
	start  int
	n      int
	counts map[int64]int
}

// NewWindow creates an empty window with the given capacity. A capacity of
// zero keeps nothing.
func NewWindow(capacity int) *Window {
	if capacity < 0 {
		capacity = 0
	}
	return &Window{
		buf:    make([]int64, capacity),
		counts: make(map[int64]int, capacity),
	}
}

// RestoreWindow rebuilds a window from IDs ordered oldest first. Only the
// newest capacity IDs are kept.
func RestoreWindow(capacity int, ids []int64) *Window {
	w := NewWindow(capacity)
	w.Push(ids...)
	return w
}

// Push appends ids in order and returns the evicted IDs, oldest first.
func (w *Window) Push(ids ...int64) []int64 {
	capacity := len(w.buf)
	if capacity == 0 {
		return append([]int64(nil), ids...)
	}

	var evicted []int64
	for _, id := range ids {
		if w.n == capacity {
			old := w.buf[w.start]
			evicted = append(evicted, old)
			w.release(old)
			w.buf[w.start] = id
			w.start = (w.start + 1) % capacity
		} else {
			w.buf[(w.start+w.n)%capacity] = id
			w.n++
		}
		w.counts[id]++
	}
	return evicted
}

func (w *Window) release(id int64) {
	if c := w.counts[id]; c <= 1 {
		delete(w.counts, id)
	} else {
		w.counts[id] = c - 1
	}
}

// Contains reports whether id is in the window.
func (w *Window) Contains(id int64) bool {
	return w.counts[id] > 0
}

// Len returns the number of IDs held.
func (w *Window) Len() int { return w.n }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// IDs returns the held IDs, oldest first.
func (w *Window) IDs() []int64 {
	out := make([]int64, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Set returns the held IDs as a set.
func (w *Window) Set() ItemSet {
	s := make(ItemSet, len(w.counts))
	for id := range w.counts {
		s[id] = struct{}{}
	}
	return s
}
