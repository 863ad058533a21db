package codec

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// sliceReader provides bounds-checked, allocation-free reads from a byte
// slice backed by a memory mapping. View* methods alias the underlying
// bytes directly (valid only as long as the mapping is open); the legacy
// loader, which must outlive the file it read from, copies what it views.
type sliceReader struct {
	b   []byte
	off int
}

func newSliceReader(b []byte) *sliceReader {
	return &sliceReader{b: b}
}

func (r *sliceReader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("codec: out of bounds read (%d bytes at %d, len=%d)", n, r.off, len(r.b))
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *sliceReader) readHeader() (HeaderV2, checksumFooter, error) {
	hb, err := r.readBytes(HeaderV2Size)
	if err != nil {
		return HeaderV2{}, checksumFooter{}, err
	}
	h, err := readHeaderV2(sliceAsReader(hb))
	if err != nil {
		return HeaderV2{}, checksumFooter{}, err
	}
	if h.Version != VersionCSRChecksummed {
		return h, checksumFooter{}, nil
	}
	fb, err := r.readBytes(checksumFooterSize)
	if err != nil {
		return HeaderV2{}, checksumFooter{}, err
	}
	footer := checksumFooter{
		DocsMetaCRC32C: binary.LittleEndian.Uint32(fb[0:4]),
		UniqCRC32C:     binary.LittleEndian.Uint32(fb[4:8]),
		OffCRC32C:      binary.LittleEndian.Uint32(fb[8:12]),
		DidCRC32C:      binary.LittleEndian.Uint32(fb[12:16]),
		HeaderCRC32C:   binary.LittleEndian.Uint32(fb[16:20]),
	}
	return h, footer, nil
}

func (r *sliceReader) viewDocMeta(n int) ([]DocMeta, error) {
	if n == 0 {
		return nil, nil
	}
	b, err := r.readBytes(n * DocMetaSize)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*DocMeta)(unsafe.Pointer(&b[0])), n), nil
}

func (r *sliceReader) viewUint64(n int) ([]uint64, error) {
	if n == 0 {
		return nil, nil
	}
	b, err := r.readBytes(n * 8)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), n), nil
}

func (r *sliceReader) viewUint32(n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	b, err := r.readBytes(n * 4)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), n), nil
}

// byteReader adapts a []byte to io.Reader without copying, for the places
// (readHeaderV2) that still take an io.Reader for the streaming writer path
// to share validation logic with.
type byteReader struct {
	b []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	n := copy(p, r.b)
	r.b = r.b[n:]
	if n == 0 {
		return 0, fmt.Errorf("codec: short read")
	}
	return n, nil
}

func sliceAsReader(b []byte) *byteReader { return &byteReader{b: b} }
