// Package testutil provides testing helpers for generating synthetic
// JSONL corpora with controllable near-duplicate rates and for
// measuring recall against a known ground truth.
//
// # Synthetic Corpus Generation
//
//	rng := testutil.NewRNG(seed)
//	docs := rng.Corpus(1000, testutil.CorpusOptions{
//		Vocab:         vocab,
//		TokensPerDoc:  40,
//		DuplicateRate: 0.1,
//	})
//
// # Recall
//
//	recall := testutil.ComputeRecall(groundTruthIDs, approxIDs)
package testutil
