package aggregator

import "container/heap"

// aggregate is one document's merged state across every shard it
// appeared in: the best-scoring Hit seen so far (carrying that shard's
// jaccard/containment/cand_hits), the shard it came from, and how many
// distinct shards produced this key at all.
type aggregate struct {
	hit     Hit
	foundIn int
}

// topKHeap is a bounded min-heap over aggregates, ordered by ascending
// score so the root is always the current weakest member of the
// retained top-K set.
type topKHeap []*aggregate

func (h topKHeap) Len() int            { return len(h) }
func (h topKHeap) Less(i, j int) bool  { return h[i].hit.Score < h[j].hit.Score }
func (h topKHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x any)         { *h = append(*h, x.(*aggregate)) }
func (h *topKHeap) Pop() (x any) {
	old := *h
	n := len(old)
	x = old[n-1]
	*h = old[:n-1]
	return x
}

// offerAll pushes every aggregate in m onto a size-k min-heap, popping
// the weakest member whenever the heap grows past k, then drains it
// into descending-score order.
func offerAll(m map[string]*aggregate, k int) []Hit {
	if k <= 0 || len(m) == 0 {
		return nil
	}
	h := make(topKHeap, 0, k+1)
	heap.Init(&h)
	for _, agg := range m {
		heap.Push(&h, agg)
		if h.Len() > k {
			heap.Pop(&h)
		}
	}

	out := make([]Hit, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		agg := heap.Pop(&h).(*aggregate)
		agg.hit.FoundIn = agg.foundIn
		out[i] = agg.hit
	}
	return out
}
