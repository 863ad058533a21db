package builder

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/plagio/plagio/internal/resource"
)

// runRef names a run file plus the worker-local-to-global did base that
// must be added to every posting read from it. base is 0 for run files
// that already hold global ids (the output of a prior fan-in pass).
type runRef struct {
	path string
	base uint32
}

// runSource is one positioned input to a k-way merge: the next posting
// to consider is cached in cur, with the worker base already applied.
type runSource struct {
	r    *runReader
	base uint32
	cur  posting
	ok   bool
}

func newRunSource(ref runRef) (*runSource, error) {
	r, err := openRunFile(ref.path)
	if err != nil {
		return nil, err
	}
	s := &runSource{r: r, base: ref.base}
	if err := s.advance(); err != nil {
		_ = r.close()
		return nil, err
	}
	return s, nil
}

func (s *runSource) advance() error {
	p, ok, err := s.r.next()
	if err != nil {
		return err
	}
	if !ok {
		s.ok = false
		return nil
	}
	p.did += s.base
	s.cur = p
	s.ok = true
	return nil
}

type sourceHeap []*runSource

func (h sourceHeap) Len() int { return len(h) }
func (h sourceHeap) Less(i, j int) bool {
	a, b := h[i].cur, h[j].cur
	if a.hash != b.hash {
		return a.hash < b.hash
	}
	return a.did < b.did
}
func (h sourceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *sourceHeap) Push(x any)        { *h = append(*h, x.(*runSource)) }
func (h *sourceHeap) Pop() (x any) {
	old := *h
	n := len(old)
	x = old[n-1]
	*h = old[:n-1]
	return x
}

// mergeSources k-way merges sources (already positioned via
// newRunSource) in ascending (hash, did) order, invoking emit exactly
// once per distinct (hash, did) pair — the global per-row dedup
// spec.md §4.4 steps 4-5 require. Every source is closed, whether
// exhausted normally or left over after an error.
func mergeSources(sources []*runSource, emit func(hash uint64, did uint32)) error {
	h := make(sourceHeap, 0, len(sources))
	for _, s := range sources {
		if s.ok {
			h = append(h, s)
		} else {
			_ = s.r.close()
		}
	}
	heap.Init(&h)

	closeRemaining := func() {
		for _, s := range h {
			_ = s.r.close()
		}
	}

	var lastHash uint64
	var lastDid uint32
	have := false
	for h.Len() > 0 {
		s := heap.Pop(&h).(*runSource)
		p := s.cur
		if !have || p.hash != lastHash || p.did != lastDid {
			emit(p.hash, p.did)
			lastHash, lastDid, have = p.hash, p.did, true
		}
		if err := s.advance(); err != nil {
			_ = s.r.close()
			closeRemaining()
			return err
		}
		if s.ok {
			heap.Push(&h, s)
			continue
		}
		if err := s.r.close(); err != nil {
			closeRemaining()
			return err
		}
	}
	return nil
}

// fanInMerge repeatedly merges groups of up to fanin run refs into new,
// already-global run files (spec.md §4.4 step 4), until the number of
// remaining runs is at most fanin. Returns the final refs (base 0) to
// feed into the last CSR merge, plus every intermediate path created
// along the way (for cleanup).
func fanInMerge(ctx context.Context, rc *resource.Controller, tmpDir string, refs []runRef, fanin int) (final []runRef, temps []string, err error) {
	cur := refs
	pass := 0
	for len(cur) > fanin {
		var next []runRef
		for i := 0; i < len(cur); i += fanin {
			group := cur[i:min(i+fanin, len(cur))]
			path, err := mergeGroupToRunFile(ctx, rc, tmpDir, pass, i/fanin, group)
			if err != nil {
				return nil, temps, err
			}
			temps = append(temps, path)
			next = append(next, runRef{path: path, base: 0})
		}
		cur = next
		pass++
	}
	return cur, temps, nil
}

func mergeGroupToRunFile(ctx context.Context, rc *resource.Controller, tmpDir string, pass, groupIdx int, group []runRef) (string, error) {
	sources := make([]*runSource, 0, len(group))
	for _, ref := range group {
		s, err := newRunSource(ref)
		if err != nil {
			for _, opened := range sources {
				_ = opened.r.close()
			}
			return "", err
		}
		sources = append(sources, s)
	}

	var merged []posting
	err := mergeSources(sources, func(hash uint64, did uint32) {
		merged = append(merged, posting{hash: hash, did: did})
	})
	if err != nil {
		return "", err
	}

	pattern := fmt.Sprintf("merge-p%02d-g%05d-*.zst", pass, groupIdx)
	return writeRunFile(ctx, rc, tmpDir, pattern, merged)
}

// mergeToCSR performs the final k-way merge over refs (already global)
// directly into the three CSR arrays, per spec.md §4.4 step 5.
func mergeToCSR(refs []runRef) (uniq []uint64, off []uint64, did []uint32, err error) {
	sources := make([]*runSource, 0, len(refs))
	for _, ref := range refs {
		s, err := newRunSource(ref)
		if err != nil {
			for _, opened := range sources {
				_ = opened.r.close()
			}
			return nil, nil, nil, err
		}
		sources = append(sources, s)
	}

	haveHash := false
	var lastHash uint64
	mergeErr := mergeSources(sources, func(hash uint64, d uint32) {
		if !haveHash || hash != lastHash {
			uniq = append(uniq, hash)
			off = append(off, uint64(len(did)))
			lastHash = hash
			haveHash = true
		}
		did = append(did, d)
	})
	if mergeErr != nil {
		return nil, nil, nil, mergeErr
	}
	off = append(off, uint64(len(did)))
	if len(uniq) == 0 {
		off = []uint64{0}
	}
	return uniq, off, did, nil
}
