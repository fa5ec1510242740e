// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"reflect"
	"testing"
)

func TestWindow_FIFOEviction(t *testing.T) {
	t.Parallel()

	w := NewWindow(3)
	for i, id := range []int64{1, 2, 3} {
		if ev := w.Push(id); len(ev) != 0 {
			t.Fatalf("Push #%d evicted %v before capacity", i, ev)
		}
	}

	for _, tc := range []struct {
		push    int64
		evicted int64
		want    []int64
	}{
		{4, 1, []int64{2, 3, 4}},
		{5, 2, []int64{3, 4, 5}},
		{6, 3, []int64{4, 5, 6}},
	} {
		ev := w.Push(tc.push)
		if len(ev) != 1 || ev[0] != tc.evicted {
			t.Errorf("Push(%d) evicted %v, want [%d]", tc.push, ev, tc.evicted)
		}
		if got := w.IDs(); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("after Push(%d) IDs = %v, want %v", tc.push, got, tc.want)
		}
		if w.Len() > w.Cap() {
			t.Errorf("Len() = %d exceeds Cap() = %d", w.Len(), w.Cap())
		}
	}

	if w.Contains(3) || !w.Contains(5) {
		t.Error("Contains() does not track evictions")
	}
}

func TestWindow_PushMany(t *testing.T) {
	t.Parallel()

	w := NewWindow(4)
	ev := w.Push(seq(1, 10)...)
	if !reflect.DeepEqual(ev, seq(1, 6)) {
		t.Errorf("evicted = %v, want 1..6", ev)
	}
	if got := w.IDs(); !reflect.DeepEqual(got, seq(7, 10)) {
		t.Errorf("IDs() = %v, want 7..10", got)
	}
}

func TestWindow_DuplicateIDs(t *testing.T) {
	t.Parallel()

	w := NewWindow(2)
	w.Push(7, 7)
	w.Push(8)
	if !w.Contains(7) {
		t.Error("one copy of 7 is still held")
	}
	w.Push(9)
	if w.Contains(7) {
		t.Error("7 should be gone after both copies were evicted")
	}
}

func TestWindow_RoundTrip(t *testing.T) {
	t.Parallel()

	w := NewWindow(5)
	w.Push(seq(1, 8)...)

	restored := RestoreWindow(5, w.IDs())
	if !reflect.DeepEqual(restored.IDs(), w.IDs()) {
		t.Errorf("restored IDs = %v, want %v", restored.IDs(), w.IDs())
	}

	smaller := RestoreWindow(2, w.IDs())
	if !reflect.DeepEqual(smaller.IDs(), []int64{7, 8}) {
		t.Errorf("restore into smaller window = %v, want newest two", smaller.IDs())
	}
}

func TestWindow_ZeroCapacity(t *testing.T) {
	t.Parallel()

	w := NewWindow(0)
	ev := w.Push(1, 2)
	if w.Len() != 0 || len(ev) != 2 {
		t.Errorf("zero-capacity window Len = %d, evicted = %v", w.Len(), ev)
	}
}

func TestEngagementTracker(t *testing.T) {
	t.Parallel()

	tr := NewEngagementTracker(0)
	if tr.Count() != 0 {
		t.Fatalf("initial Count() = %d, want 0", tr.Count())
	}

	const m = 7
	for i := 1; i <= m; i++ {
		if got := tr.Observe(false); got != i {
			t.Fatalf("Observe(false) #%d = %d, want %d", i, got, i)
		}
	}
	if got := tr.Observe(true); got != 0 {
		t.Errorf("Observe(true) = %d, want reset to 0", got)
	}
	if got := NewEngagementTracker(-3).Count(); got != 0 {
		t.Errorf("negative initial count = %d, want 0", got)
	}
}

func TestWeights(t *testing.T) {
	t.Parallel()

	if got := GroupWeight(0); got != 1 {
		t.Errorf("GroupWeight(0) = %v, want 1", got)
	}
	if got := GroupWeight(4); got != 0.25 {
		t.Errorf("GroupWeight(4) = %v, want 0.25", got)
	}

	prev := -1.0
	for e := 0; e <= 20; e++ {
		w := RandomWeight(40, e)
		if w < prev {
			t.Fatalf("RandomWeight not monotone at engagement %d: %v < %v", e, w, prev)
		}
		prev = w
	}
	if RandomWeight(40, 0) != 0 {
		t.Error("RandomWeight with zero engagement should be 0")
	}
	if got := RandomWeight(0, 3); got != 3 {
		t.Errorf("RandomWeight(0, 3) = %v, want 3", got)
	}

	if got := Squash(0); got != 0.5 {
		t.Errorf("Squash(0) = %v, want 0.5", got)
	}
	if Squash(10) <= Squash(1) {
		t.Error("Squash must be increasing")
	}
}
