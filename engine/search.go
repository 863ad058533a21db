package engine

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/plagio/plagio/shingle"
	"github.com/plagio/plagio/text"
)

// qterm is a query shingle with its resolved posting range in the shard.
type qterm struct {
	hash uint64
	df   uint64
	lo   uint64
	hi   uint64
}

// candidate is a document reached through at least one seed's posting
// list, with the number of seed postings that reached it.
type candidate struct {
	did  uint32
	hits int
}

// Search runs a near-duplicate query against the shard, returning up to
// topK hits ordered by descending score. A query shorter than the
// shard's WMinQuery, or one with no matching shingles, returns zero hits
// and a nil error.
func (e *Engine) Search(queryUTF8 string, topK int) ([]Hit, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if topK <= 0 {
		return nil, nil
	}
	if topK > TopKHardMax {
		topK = TopKHardMax
	}

	norm := text.Normalize([]byte(queryUTF8))
	spans := text.Tokenize(norm)

	if len(spans) < e.cfg.WMinQuery || len(spans) < shingle.K {
		return nil, nil
	}

	hashes := shingle.Dedup(shingle.Hashes(norm, spans, shingle.K))
	if len(hashes) == 0 {
		return nil, nil
	}

	qterms := e.resolveQTerms(hashes)
	if len(qterms) == 0 {
		return nil, nil
	}

	if len(qterms) > e.cfg.MaxQUniq9 {
		quickselect(qterms, e.cfg.MaxQUniq9, func(a, b qterm) bool { return a.df < b.df })
		qterms = qterms[:e.cfg.MaxQUniq9]
	}

	seeds := selectSeeds(qterms, e.cfg.FetchPerK, e.cfg.MaxSumDFSeeds)
	if len(seeds) == 0 {
		return nil, nil
	}

	cands := e.gatherCandidates(seeds)
	if len(cands) == 0 {
		return nil, nil
	}
	if len(cands) > e.cfg.MaxCandsDoc {
		quickselect(cands, e.cfg.MaxCandsDoc, func(a, b candidate) bool { return a.hits > b.hits })
		cands = cands[:e.cfg.MaxCandsDoc]
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].did < cands[j].did })

	interCnt := e.intersect(qterms, cands)

	qSize := len(qterms)
	scored := make([]Hit, 0, len(cands))
	for i, c := range cands {
		inter := interCnt[i]
		if inter <= 0 {
			continue
		}
		tokLen := e.index.DocsMeta[c.did].TokLen
		if int(tokLen) < e.cfg.WMinDoc {
			continue
		}
		if int(tokLen) < shingle.K {
			continue
		}
		tSize := int(tokLen) - shingle.K + 1

		j, cScore := jaccardContainment(inter, qSize, tSize)
		score := e.cfg.W9 * (e.cfg.Alpha*j + (1-e.cfg.Alpha)*cScore)

		scored = append(scored, Hit{
			DocID:       e.DocID(c.did),
			DocUID:      c.did,
			Score:       score,
			Jaccard:     j,
			Containment: cScore,
			CandHits:    c.hits,
		})
	}
	if len(scored) == 0 {
		return nil, nil
	}

	if len(scored) > topK {
		quickselect(scored, topK, func(a, b Hit) bool { return a.Score > b.Score })
		scored = scored[:topK]
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

// resolveQTerms looks up each query shingle hash in the shard's uniq
// array, keeping only shingles present in the shard with a document
// frequency at or below MaxDFForSeed.
func (e *Engine) resolveQTerms(hashes []uint64) []qterm {
	uniq := e.index.Uniq
	off := e.index.Off
	qterms := make([]qterm, 0, len(hashes))
	for _, h := range hashes {
		i := sort.Search(len(uniq), func(i int) bool { return uniq[i] >= h })
		if i >= len(uniq) || uniq[i] != h {
			continue
		}
		lo, hi := off[i], off[i+1]
		df := hi - lo
		if df == 0 || df > uint64(e.cfg.MaxDFForSeed) {
			continue
		}
		qterms = append(qterms, qterm{hash: h, df: df, lo: lo, hi: hi})
	}
	return qterms
}

// selectSeeds picks the min(fetchPerK, |qterms|) rarest terms as seeds
// via quickselect, sorts just that prefix ascending by df, then admits
// seeds greedily while the cumulative document frequency stays within
// budget. At least one seed is always used when qterms is non-empty.
func selectSeeds(qterms []qterm, fetchPerK int, maxSumDFSeeds uint64) []qterm {
	n := len(qterms)
	if fetchPerK < n {
		n = fetchPerK
	}
	quickselect(qterms, n, func(a, b qterm) bool { return a.df < b.df })
	seedPool := qterms[:n]
	sort.Slice(seedPool, func(i, j int) bool { return seedPool[i].df < seedPool[j].df })

	budget := maxSumDFSeeds
	if budget == 0 {
		budget = hardMaxSumDFSeeds
	}

	var sumDF uint64
	used := 0
	for i := 0; i < n; i++ {
		df := seedPool[i].df
		if used > 0 && sumDF+df > budget {
			break
		}
		sumDF += df
		used++
	}
	return seedPool[:used]
}

// gatherCandidates unions the posting lists of the selected seeds into a
// roaring bitmap, bounding memory relative to a plain sorted slice when
// MaxCandsDoc is large, and counts per-document seed hits alongside it.
func (e *Engine) gatherCandidates(seeds []qterm) []candidate {
	bm := roaring.New()
	hits := make(map[uint32]int, len(seeds)*4)
	did := e.index.Did
	for _, s := range seeds {
		for p := s.lo; p < s.hi; p++ {
			d := did[p]
			bm.Add(d)
			hits[d]++
		}
	}
	if bm.IsEmpty() {
		return nil
	}
	ids := bm.ToArray()
	cands := make([]candidate, len(ids))
	for i, d := range ids {
		cands[i] = candidate{did: d, hits: hits[d]}
	}
	return cands
}

// intersect computes, for each candidate (sorted ascending by did), the
// number of query shingles (not just seeds) whose posting list contains
// that candidate, via a sorted merge against every qterm's posting
// range.
func (e *Engine) intersect(qterms []qterm, cands []candidate) []int {
	did := e.index.Did
	counts := make([]int, len(cands))
	for _, qt := range qterms {
		i, j := qt.lo, 0
		for i < qt.hi && j < len(cands) {
			postDid := did[i]
			candDid := cands[j].did
			switch {
			case postDid < candDid:
				i++
			case postDid > candDid:
				j++
			default:
				counts[j]++
				i++
				for i < qt.hi && did[i] == postDid {
					i++
				}
			}
		}
	}
	return counts
}

// jaccardContainment computes Jaccard and containment from an
// intersection size and the query/target shingle-set sizes.
func jaccardContainment(inter, qSize, tSize int) (jaccard, containment float64) {
	if inter <= 0 || qSize <= 0 || tSize <= 0 {
		return 0, 0
	}
	union := qSize + tSize - inter
	if union > 0 {
		jaccard = float64(inter) / float64(union)
	}
	containment = float64(inter) / float64(qSize)
	return jaccard, containment
}
