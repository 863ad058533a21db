package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/plagio/plagio/internal/hash"
)

// DocMeta is the fixed-size per-document record: post-normalization token
// count plus the 128-bit simhash fingerprint. Position in the table is the
// document's internal id (did).
type DocMeta struct {
	TokLen    uint32
	SimhashHi uint64
	SimhashLo uint64
}

// DocMetaSize is the on-disk size of one DocMeta record: 4 + 8 + 8.
const DocMetaSize = 20

// WriteOptions configures Write.
type WriteOptions struct {
	// Checksummed enables the VersionCSRChecksummed header variant with
	// per-section CRC32C checksums and a header self-checksum.
	Checksummed bool
}

// Write streams a complete CSR index file: header, docs-meta, uniq, off,
// did, in that order. w should be a buffered, seekless writer; callers
// that need atomic publication should write through WriteFile instead.
func Write(w io.Writer, docsMeta []DocMeta, uniq []uint64, off []uint64, did []uint32, opts WriteOptions) error {
	if err := validateEndianness(); err != nil {
		return err
	}
	if len(off) != len(uniq)+1 {
		return fmt.Errorf("codec: off length %d must be uniq length %d + 1", len(off), len(uniq))
	}

	version := VersionCSR
	if opts.Checksummed {
		version = VersionCSRChecksummed
	}

	h := HeaderV2{
		Magic:   Magic,
		Version: version,
		NDocs:   uint32(len(docsMeta)),
		UniqCnt: uint64(len(uniq)),
		DidCnt:  uint64(len(did)),
	}

	docsMetaBytes := docMetaBytes(docsMeta)
	uniqBytes := uint64SliceBytes(uniq)
	offBytes := uint64SliceBytes(off)
	didBytes := uint32SliceBytes(did)

	if !opts.Checksummed {
		if err := writeHeaderV2(w, h); err != nil {
			return err
		}
	} else {
		footer := checksumFooter{
			DocsMetaCRC32C: hash.CRC32C(docsMetaBytes),
			UniqCRC32C:     hash.CRC32C(uniqBytes),
			OffCRC32C:      hash.CRC32C(offBytes),
			DidCRC32C:      hash.CRC32C(didBytes),
		}
		footer.HeaderCRC32C = headerChecksum(h, footer)
		if err := writeHeaderV2(w, h); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, footer); err != nil {
			return err
		}
	}

	for _, b := range [][]byte{docsMetaBytes, uniqBytes, offBytes, didBytes} {
		if len(b) == 0 {
			continue
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// headerChecksum computes the CRC32C of the header and footer with
// HeaderCRC32C zeroed, matching the "self-checksum with that field zeroed"
// pattern.
func headerChecksum(h HeaderV2, footer checksumFooter) uint32 {
	footer.HeaderCRC32C = 0
	buf := make([]byte, 0, HeaderV2Size+checksumFooterSize)
	buf = append(buf, h.Magic[:]...)
	buf = le32(buf, h.Version)
	buf = le32(buf, h.NDocs)
	buf = le64(buf, h.UniqCnt)
	buf = le64(buf, h.DidCnt)
	buf = le64(buf, h.Reserved0)
	buf = le64(buf, h.Reserved1)
	buf = le32(buf, footer.DocsMetaCRC32C)
	buf = le32(buf, footer.UniqCRC32C)
	buf = le32(buf, footer.OffCRC32C)
	buf = le32(buf, footer.DidCRC32C)
	buf = le32(buf, footer.HeaderCRC32C)
	return hash.CRC32C(buf)
}

func le32(b []byte, v uint32) []byte {
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], v)
	return append(b, t[:]...)
}

func le64(b []byte, v uint64) []byte {
	var t [8]byte
	binary.LittleEndian.PutUint64(t[:], v)
	return append(b, t[:]...)
}

func validateEndianness() error {
	var x uint16 = 1
	if *(*byte)(unsafe.Pointer(&x)) != 1 {
		return ErrBigEndianHost
	}
	return nil
}

func docMetaBytes(s []DocMeta) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*DocMetaSize)
}

func uint64SliceBytes(s []uint64) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
}

func uint32SliceBytes(s []uint32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}

// WriteFile writes a CSR index to path via a temp-file-then-rename, fsyncing
// the file and (best-effort) its directory before rename so the publish is
// durable across power loss.
func WriteFile(path string, docsMeta []DocMeta, uniq []uint64, off []uint64, did []uint32, opts WriteOptions) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, 1<<20)
	if err := Write(buf, docsMeta, uniq, off, did, opts); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		if err := tmp.Sync(); err != nil {
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	tmpName = ""
	return nil
}
