package shingle

import "sort"

// Dedup sorts hashes ascending and removes duplicates in place, returning
// the deduped prefix. Used per-document during build (a document's shingle
// set, not its shingle sequence) and per-query during search.
func Dedup(hashes []uint64) []uint64 {
	if len(hashes) == 0 {
		return hashes
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	n := 1
	for i := 1; i < len(hashes); i++ {
		if hashes[i] != hashes[n-1] {
			hashes[n] = hashes[i]
			n++
		}
	}
	return hashes[:n]
}
