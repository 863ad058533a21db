// Package shingle turns a tokenized document into the 64-bit shingle
// hashes and the 128-bit simhash fingerprint the rest of the system keys
// off of.
package shingle

import "github.com/plagio/plagio/text"

// K is the default shingle window width: a shingle is K consecutive
// tokens. It is a per-build constant, not a runtime-configurable one — a
// shard's K is fixed at build time and must match the engine reading it.
const K = 9

const (
	fnvOffset uint64 = 1469598103934665603
	fnvPrime  uint64 = 1099511628211
)

// fnv1a64Seeded streams b through FNV-1a starting from seed instead of the
// canonical offset basis. Used by Simhash128 to derive two independent
// 64-bit hashes per token without hashing twice with unrelated algorithms.
func fnv1a64Seeded(seed uint64, b []byte) uint64 {
	h := seed
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime
	}
	return h
}

// hashShingle streams tok[i] SP tok[i+1] SP ... SP tok[i+k-1] through
// FNV-1a without ever materializing the joined string.
func hashShingle(norm []byte, spans []text.Span, start, k int) uint64 {
	h := fnvOffset
	for j := 0; j < k; j++ {
		if j > 0 {
			h ^= ' '
			h *= fnvPrime
		}
		for _, c := range spans[start+j].Bytes(norm) {
			h ^= uint64(c)
			h *= fnvPrime
		}
	}
	return h
}

// Hashes produces one 64-bit shingle hash per window of k consecutive
// token spans, in document order (duplicates included — callers that need
// a document's distinct shingle set dedup separately).
func Hashes(norm []byte, spans []text.Span, k int) []uint64 {
	if len(spans) < k {
		return nil
	}
	out := make([]uint64, len(spans)-k+1)
	for i := range out {
		out[i] = hashShingle(norm, spans, i, k)
	}
	return out
}

// Simhash128 computes a 128-bit locality-sensitive fingerprint from the
// same token stream the shingle hashes are drawn from. It is stored
// alongside document metadata but is not consulted by the current scoring
// path — reserved for future coarse prefiltering.
func Simhash128(norm []byte, spans []text.Span) (hi, lo uint64) {
	var v [128]int32
	for _, sp := range spans {
		tok := sp.Bytes(norm)
		h0 := fnv1a64Seeded(fnvOffset, tok)
		h1 := fnv1a64Seeded(fnvPrime, tok)
		for i := 0; i < 64; i++ {
			if h0&(1<<uint(i)) != 0 {
				v[i]++
			} else {
				v[i]--
			}
			if h1&(1<<uint(i)) != 0 {
				v[64+i]++
			} else {
				v[64+i]--
			}
		}
	}
	for i := 0; i < 64; i++ {
		if v[i] >= 0 {
			hi |= 1 << uint(i)
		}
		if v[64+i] >= 0 {
			lo |= 1 << uint(i)
		}
	}
	return hi, lo
}
