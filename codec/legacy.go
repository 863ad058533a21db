package codec

import "fmt"

// legacyRecordSize is the size of one (hash uint64, docid uint32) pair in
// the v1 flat posting format.
const legacyRecordSize = 12

// loadLegacyFlat converts the v1 flat-posting format (docs-meta followed
// by a flat list of (hash, docid) pairs sorted by (hash, docid)) into the
// same CSR representation the v2 loader produces. The input is copied
// rather than viewed: the caller unmaps its backing file immediately after
// this returns.
func loadLegacyFlat(rest []byte, nDocs uint32) (*Index, error) {
	r := newSliceReader(rest)

	metaView, err := r.viewDocMeta(int(nDocs))
	if err != nil {
		return nil, fmt.Errorf("codec: legacy docs-meta: %w", err)
	}
	docsMeta := make([]DocMeta, len(metaView))
	copy(docsMeta, metaView)

	remaining := r.b[r.off:]
	if len(remaining)%legacyRecordSize != 0 {
		return nil, fmt.Errorf("codec: legacy posting list size %d not a multiple of %d", len(remaining), legacyRecordSize)
	}
	nRecords := len(remaining) / legacyRecordSize
	recs := make([]legacyRecord, nRecords)
	rr := newSliceReader(remaining)
	for i := 0; i < nRecords; i++ {
		h, err := rr.viewUint64(1)
		if err != nil {
			return nil, fmt.Errorf("codec: legacy record %d hash: %w", i, err)
		}
		d, err := rr.viewUint32(1)
		if err != nil {
			return nil, fmt.Errorf("codec: legacy record %d docid: %w", i, err)
		}
		recs[i] = legacyRecord{hash: h[0], docid: d[0]}
	}

	uniq, off, did := flatToCSR(recs)

	return &Index{
		NDocs:    nDocs,
		DocsMeta: docsMeta,
		Uniq:     uniq,
		Off:      off,
		Did:      did,
	}, nil
}

type legacyRecord struct {
	hash  uint64
	docid uint32
}

// flatToCSR groups a (hash, docid)-sorted record list into CSR arrays. The
// input is assumed already sorted and per-hash deduped, matching the v1
// writer's contract; duplicate (hash, docid) pairs within a run are still
// collapsed defensively.
func flatToCSR(recs []legacyRecord) (uniq []uint64, off []uint64, did []uint32) {
	uniq = make([]uint64, 0, 256)
	off = make([]uint64, 0, 257)
	did = make([]uint32, 0, len(recs))

	var lastHash uint64
	haveHash := false
	var lastDid uint32
	haveDid := false

	for _, rec := range recs {
		if !haveHash || rec.hash != lastHash {
			// off[i] is the start offset of the row we're about to begin,
			// i.e. how many dids have been emitted so far.
			uniq = append(uniq, rec.hash)
			off = append(off, uint64(len(did)))
			lastHash = rec.hash
			haveHash = true
			haveDid = false
		}
		if haveDid && rec.docid == lastDid {
			continue
		}
		did = append(did, rec.docid)
		lastDid = rec.docid
		haveDid = true
	}
	off = append(off, uint64(len(did)))
	if len(uniq) == 0 {
		off = []uint64{0}
	}
	return uniq, off, did
}
