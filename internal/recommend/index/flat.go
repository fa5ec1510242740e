// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package index

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnknownID is returned when an ID is not present in the index.
	ErrUnknownID = errors.New("unknown id")
)

// ctxCheckInterval is how many rows are scanned between context checks.
const ctxCheckInterval = 1024

// Metric selects the distance function of an index.
type Metric uint8

const (
	// MetricL2 ranks by squared Euclidean distance.
	MetricL2 Metric = iota + 1
	// MetricInnerProduct ranks by descending dot product.
	MetricInnerProduct
)

// String returns the metric name.
func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricInnerProduct:
		return "ip"
	default:
		return "unknown"
	}
}

// ParseMetric parses "l2" or "ip" (also "inner_product", "dot").
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclidean":
		return MetricL2, nil
	case "ip", "inner_product", "dot":
		return MetricInnerProduct, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Neighbor is a single search hit.
type Neighbor struct {
	ID       int64   `json:"id"`
	Distance float32 `json:"distance"`
}

// Similarity returns the raw inner product for MetricInnerProduct hits.
func (n Neighbor) Similarity() float32 {
	return -n.Distance
}

// FlatIndex is an exact nearest-neighbor index. It is safe for concurrent use;
// searches share a read lock.
type FlatIndex struct {
	mu     sync.RWMutex
	metric Metric
	dim    int
	ids    []int64
	pos    map[int64]int
	data   []float32
}

// New creates an empty index for vectors of the given dimension.
func New(dim int, metric Metric) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if metric != MetricL2 && metric != MetricInnerProduct {
		return nil, fmt.Errorf("unsupported metric %d", metric)
	}

	return &FlatIndex{
		metric: metric,
		dim:    dim,
		pos:    make(map[int64]int),
	}, nil
}

// Dim returns the vector dimension.
func (x *FlatIndex) Dim() int { return x.dim }

// Metric returns the index metric.
func (x *FlatIndex) Metric() Metric { return x.metric }

// Len returns the number of indexed vectors.
func (x *FlatIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Has reports whether id is indexed.
func (x *FlatIndex) Has(id int64) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.pos[id]
	return ok
}

// IDs returns a copy of the indexed IDs in insertion order.
func (x *FlatIndex) IDs() []int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]int64(nil), x.ids...)
}

// Add inserts a vector, replacing any existing vector with the same ID.
func (x *FlatIndex) Add(id int64, vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), x.dim)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if p, ok := x.pos[id]; ok {
		copy(x.data[p*x.dim:(p+1)*x.dim], vec)
		return nil
	}

	x.pos[id] = len(x.ids)
	x.ids = append(x.ids, id)
	x.data = append(x.data, vec...)
	return nil
}

// Vector returns a copy of the vector stored for id.
func (x *FlatIndex) Vector(id int64) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, ok := x.pos[id]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), x.data[p*x.dim:(p+1)*x.dim]...), true
}

// Search returns up to k nearest neighbors of query, nearest first.
// k larger than the index size is clamped.
func (x *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), x.dim)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.searchLocked(ctx, query, k, -1)
}

// SearchByID returns up to k nearest neighbors of the vector stored for id,
// excluding id itself.
func (x *FlatIndex) SearchByID(ctx context.Context, id int64, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, ok := x.pos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	query := x.data[p*x.dim : (p+1)*x.dim]

	return x.searchLocked(ctx, query, k, p)
}

// searchLocked scans every row, keeping the k best in a bounded max-heap.
// Row skip is excluded from the results. Must be called with mu held.
func (x *FlatIndex) searchLocked(ctx context.Context, query []float32, k, skip int) ([]Neighbor, error) {
	if k <= 0 || len(x.ids) == 0 {
		return []Neighbor{}, nil
	}
	if k > len(x.ids) {
		k = len(x.ids)
	}

	h := make(neighborHeap, 0, k+1)
	for row, id := range x.ids {
		if row%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if row == skip {
			continue
		}

		n := Neighbor{ID: id, Distance: x.distance(query, x.data[row*x.dim:(row+1)*x.dim])}
		if len(h) < k {
			heap.Push(&h, n)
			continue
		}
		if worse(h[0], n) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}

	out := []Neighbor(h)
	sort.Slice(out, func(i, j int) bool { return worse(out[j], out[i]) })
	return out, nil
}

func (x *FlatIndex) distance(a, b []float32) float32 {
	if x.metric == MetricInnerProduct {
		return -dot(a, b)
	}
	return squaredL2(a, b)
}

// worse reports whether a ranks after b.
func worse(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.ID > b.ID
}

// neighborHeap is a max-heap on rank: the worst kept neighbor sits at the root.
type neighborHeap []Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *neighborHeap) Push(v any) { *h = append(*h, v.(Neighbor)) }

func (h *neighborHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func squaredL2(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
