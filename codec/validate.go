package codec

import (
	"fmt"
	"math/rand"
)

// fullScanThreshold bounds how large uniq/did may be before Validate
// switches from a full scan to windowed-plus-random-sample checks. A
// section with at most 1<<20 entries is always fully checked, while a
// shard with hundreds of millions of postings pays a bounded, sublinear
// validation cost.
const fullScanThreshold = 1 << 20

// sampleCount is the number of random positions/rows Validate inspects
// once a check falls back to sampling.
const sampleCount = 4096

// Validate checks the CSR invariants: off monotonicity and boundary
// values, uniq strict ascent, did range, and per-row strict ascent. It
// fails the load on any violation it finds. The last three checks cover
// a section longer than fullScanThreshold only in start/middle/end
// windows plus random samples, so a violation elsewhere is not detected.
func Validate(ix *Index) error {
	U := len(ix.Uniq)
	D := len(ix.Did)

	if len(ix.Off) != U+1 {
		return fmt.Errorf("codec: invariant: off length %d != uniq length %d + 1", len(ix.Off), U)
	}
	if ix.Off[0] != 0 {
		return fmt.Errorf("codec: invariant: off[0] = %d, want 0", ix.Off[0])
	}
	if int(ix.Off[U]) != D {
		return fmt.Errorf("codec: invariant: off[%d] = %d, want did length %d", U, ix.Off[U], D)
	}
	for i := 1; i <= U; i++ {
		if ix.Off[i] < ix.Off[i-1] {
			return fmt.Errorf("codec: invariant: off not monotonic at %d: %d < %d", i, ix.Off[i], ix.Off[i-1])
		}
	}

	if err := validateUniqAscending(ix.Uniq); err != nil {
		return err
	}
	if err := validateDidRange(ix.Did, ix.NDocs); err != nil {
		return err
	}
	if err := validateRowsAscending(ix.Off, ix.Did); err != nil {
		return err
	}
	return nil
}

func validateUniqAscending(uniq []uint64) error {
	check := func(i int) error {
		if uniq[i] <= uniq[i-1] {
			return fmt.Errorf("codec: invariant: uniq not strictly ascending at %d: %d <= %d", i, uniq[i], uniq[i-1])
		}
		return nil
	}
	if len(uniq) <= fullScanThreshold {
		for i := 1; i < len(uniq); i++ {
			if err := check(i); err != nil {
				return err
			}
		}
		return nil
	}
	return windowedAndSampled(len(uniq), check)
}

func validateDidRange(did []uint32, nDocs uint32) error {
	check := func(i int) error {
		if did[i] >= nDocs {
			return fmt.Errorf("codec: invariant: did[%d] = %d out of range [0, %d)", i, did[i], nDocs)
		}
		return nil
	}
	if len(did) <= fullScanThreshold {
		for i := 0; i < len(did); i++ {
			if err := check(i); err != nil {
				return err
			}
		}
		return nil
	}
	// windowedAndSampled checks index i against i-1; here every index is
	// independent, so sample directly over [0, len(did)).
	n := len(did)
	for _, i := range windowIndices(n) {
		if err := check(i); err != nil {
			return err
		}
	}
	r := rand.New(rand.NewSource(1))
	for s := 0; s < sampleCount; s++ {
		if err := check(r.Intn(n)); err != nil {
			return err
		}
	}
	return nil
}

func validateRowsAscending(off []uint64, did []uint32) error {
	U := len(off) - 1
	checkRow := func(row int) error {
		lo, hi := off[row], off[row+1]
		for i := lo + 1; i < hi; i++ {
			if did[i] <= did[i-1] {
				return fmt.Errorf("codec: invariant: row %d postings not strictly ascending at %d: %d <= %d", row, i, did[i], did[i-1])
			}
		}
		return nil
	}
	if U <= fullScanThreshold {
		for row := 0; row < U; row++ {
			if err := checkRow(row); err != nil {
				return err
			}
		}
		return nil
	}
	for _, row := range windowIndices(U) {
		if err := checkRow(row); err != nil {
			return err
		}
	}
	r := rand.New(rand.NewSource(1))
	for s := 0; s < sampleCount; s++ {
		if err := checkRow(r.Intn(U)); err != nil {
			return err
		}
	}
	return nil
}

// windowedAndSampled applies check to every index in windows at the start,
// middle, and end of [1, n), plus sampleCount random indices, matching the
// "windows at start, middle, end plus N random samples" validation
// strategy for large sections.
func windowedAndSampled(n int, check func(i int) error) error {
	const windowSize = 4096
	windows := [][2]int{
		{1, min(windowSize, n)},
		{max(1, n/2-windowSize/2), min(n, n/2+windowSize/2)},
		{max(1, n-windowSize), n},
	}
	for _, w := range windows {
		for i := w[0]; i < w[1]; i++ {
			if err := check(i); err != nil {
				return err
			}
		}
	}
	r := rand.New(rand.NewSource(1))
	for s := 0; s < sampleCount; s++ {
		i := 1 + r.Intn(n-1)
		if err := check(i); err != nil {
			return err
		}
	}
	return nil
}

// windowIndices returns the start/middle/end windows over [0, n) used by
// checks whose positions are independent (no i-1 comparison).
func windowIndices(n int) []int {
	const windowSize = 4096
	seen := make(map[int]struct{}, windowSize*3)
	var out []int
	add := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if _, ok := seen[i]; !ok {
				seen[i] = struct{}{}
				out = append(out, i)
			}
		}
	}
	add(0, min(windowSize, n))
	add(max(0, n/2-windowSize/2), min(n, n/2+windowSize/2))
	add(max(0, n-windowSize), n)
	return out
}
