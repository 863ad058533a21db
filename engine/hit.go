package engine

// Hit is a single scored document from a single-shard search. The
// aggregator wraps Hit with shard-crossing fields (best_index_dir,
// found_in) when merging results from multiple engines.
type Hit struct {
	DocID       string  `json:"doc_id"`
	DocUID      uint32  `json:"doc_uid"`
	Score       float64 `json:"score"`
	Jaccard     float64 `json:"jaccard"`
	Containment float64 `json:"containment"`
	CandHits    int     `json:"cand_hits"`
}
