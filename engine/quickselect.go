package engine

// quickselect partially sorts s in place so that, under the ordering
// defined by less, the k smallest elements occupy s[:k] (in arbitrary
// order within that prefix) and every element in s[k:] is not less than
// every element in s[:k]. A no-op when k >= len(s).
//
// This is the Go equivalent of the original engine's use of
// std::nth_element at every capping point (query-term df cap, seed
// fetch cap, candidate cap, top-K cap): O(n) average case versus a
// full O(n log n) sort when only a prefix is needed.
func quickselect[T any](s []T, k int, less func(a, b T) bool) {
	if k >= len(s) {
		return
	}
	lo, hi := 0, len(s)-1
	for lo < hi {
		p := partition(s, lo, hi, less)
		switch {
		case p == k:
			return
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

// partition is a Lomuto-style partition around the middle element
// (swapped to hi as the pivot), returning its final resting index.
func partition[T any](s []T, lo, hi int, less func(a, b T) bool) int {
	mid := lo + (hi-lo)/2
	s[mid], s[hi] = s[hi], s[mid]
	pivot := s[hi]
	store := lo
	for i := lo; i < hi; i++ {
		if less(s[i], pivot) {
			s[i], s[store] = s[store], s[i]
			store++
		}
	}
	s[store], s[hi] = s[hi], s[store]
	return store
}
