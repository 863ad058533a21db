package builder

import "github.com/RoaringBitmap/roaring/v2"

// dedupShingles removes duplicate shingle hashes from hashes in place,
// returning the deduped prefix. Hashes are bucketed by their high 32
// bits; within a bucket, membership is tracked with a roaring bitmap
// over the low 32 bits. Since (hi, lo) together reconstruct the exact
// 64-bit hash, this is an exact dedup, not an approximation. It
// allocates one small bitmap per distinct high-32-bit prefix seen in the
// document; shingle hashes are well mixed, so that is close to one
// bitmap per distinct shingle.
func dedupShingles(hashes []uint64) []uint64 {
	if len(hashes) == 0 {
		return hashes
	}
	buckets := make(map[uint32]*roaring.Bitmap, 4)
	out := hashes[:0]
	for _, h := range hashes {
		hi := uint32(h >> 32)
		lo := uint32(h)
		bm := buckets[hi]
		if bm == nil {
			bm = roaring.New()
			buckets[hi] = bm
		}
		if bm.CheckedAdd(lo) {
			out = append(out, h)
		}
	}
	return out
}
