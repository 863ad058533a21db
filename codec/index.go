package codec

import (
	"fmt"

	"github.com/plagio/plagio/internal/hash"
	"github.com/plagio/plagio/internal/mmap"
)

// Index is a loaded CSR inverted index: either a zero-copy view into a
// memory-mapped file (the common case) or in-RAM slices built by the
// legacy v1 loader. Callers must call Close when done; Close is a no-op
// for in-RAM indexes.
type Index struct {
	NDocs    uint32
	DocsMeta []DocMeta
	Uniq     []uint64
	Off      []uint64
	Did      []uint32

	mapping *mmap.Mapping
}

// Close unmaps the backing file, if any. Idempotent.
func (ix *Index) Close() error {
	if ix == nil || ix.mapping == nil {
		return nil
	}
	return ix.mapping.Close()
}

// LoadFile loads and validates the CSR index at path. The legacy v1
// format is detected from the header and converted to CSR in memory; the
// mapped file is released immediately afterward since the conversion
// already copied everything it needs.
func LoadFile(path string) (*Index, error) {
	if err := validateEndianness(); err != nil {
		return nil, err
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codec: open %s: %w", path, err)
	}

	data := m.Bytes()
	r := newSliceReader(data)
	h, footer, err := r.readHeader()
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	if h.Version == VersionLegacyFlat {
		ix, err := loadLegacyFlat(r.b[r.off:], h.NDocs)
		_ = m.Close()
		return ix, err
	}

	docsMeta, err := r.viewDocMeta(int(h.NDocs))
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	uniq, err := r.viewUint64(int(h.UniqCnt))
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	off, err := r.viewUint64(int(h.UniqCnt) + 1)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	did, err := r.viewUint32(int(h.DidCnt))
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	if h.Version == VersionCSRChecksummed {
		if err := verifyChecksums(docsMeta, uniq, off, did, h, footer); err != nil {
			_ = m.Close()
			return nil, err
		}
	}

	ix := &Index{
		NDocs:    h.NDocs,
		DocsMeta: docsMeta,
		Uniq:     uniq,
		Off:      off,
		Did:      did,
		mapping:  m,
	}
	if err := Validate(ix); err != nil {
		_ = m.Close()
		return nil, err
	}
	return ix, nil
}

func verifyChecksums(docsMeta []DocMeta, uniq, off []uint64, did []uint32, h HeaderV2, footer checksumFooter) error {
	gotHeader := headerChecksum(h, footer)
	if gotHeader != footer.HeaderCRC32C {
		return fmt.Errorf("codec: header checksum mismatch: got 0x%08x want 0x%08x", gotHeader, footer.HeaderCRC32C)
	}
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"docs-meta", hash.CRC32C(docMetaBytes(docsMeta)), footer.DocsMetaCRC32C},
		{"uniq", hash.CRC32C(uint64SliceBytes(uniq)), footer.UniqCRC32C},
		{"off", hash.CRC32C(uint64SliceBytes(off)), footer.OffCRC32C},
		{"did", hash.CRC32C(uint32SliceBytes(did)), footer.DidCRC32C},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("codec: %s checksum mismatch: got 0x%08x want 0x%08x", c.name, c.got, c.want)
		}
	}
	return nil
}
