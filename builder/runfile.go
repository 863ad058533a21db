package builder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/plagio/plagio/internal/resource"
)

// posting is a single (shingle hash, document id) pair, the unit of
// both a worker's in-RAM run buffer and its on-disk spilled run files.
type posting struct {
	hash uint64
	did  uint32
}

// writeRunFile writes postings (already sorted and deduped by the
// caller) to a new zstd-compressed temp file under dir, returning its
// path. Record layout: a 4-byte little-endian count, then that many
// fixed 12-byte (hash uint64, did uint32) little-endian records.
//
// rc, if non-nil, throttles the write to its configured IO budget,
// blocking until enough tokens for the run's uncompressed size are
// available.
func writeRunFile(ctx context.Context, rc *resource.Controller, dir, pattern string, postings []posting) (path string, err error) {
	if err := rc.AcquireIO(ctx, 4+12*len(postings)); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	ok := false
	defer func() {
		_ = f.Close()
		if !ok {
			_ = os.Remove(name)
		}
	}()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriterSize(zw, 1<<16)

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(postings)))
	if _, err := bw.Write(hdr[:]); err != nil {
		_ = zw.Close()
		return "", err
	}
	var rec [12]byte
	for _, p := range postings {
		binary.LittleEndian.PutUint64(rec[0:8], p.hash)
		binary.LittleEndian.PutUint32(rec[8:12], p.did)
		if _, err := bw.Write(rec[:]); err != nil {
			_ = zw.Close()
			return "", err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = zw.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", err
	}
	ok = true
	return name, nil
}

// runReader streams postings back out of a file written by writeRunFile,
// in on-disk (already sorted) order.
type runReader struct {
	f   *os.File
	zr  *zstd.Decoder
	br  *bufio.Reader
	n   uint32
	cur uint32
}

func openRunFile(path string) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	br := bufio.NewReaderSize(zr, 1<<16)
	var hdr [4]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		zr.Close()
		_ = f.Close()
		return nil, fmt.Errorf("builder: read run file header %s: %w", path, err)
	}
	return &runReader{f: f, zr: zr, br: br, n: binary.LittleEndian.Uint32(hdr[:])}, nil
}

// next returns the next posting, or ok=false at end of stream.
func (r *runReader) next() (p posting, ok bool, err error) {
	if r.cur >= r.n {
		return posting{}, false, nil
	}
	var rec [12]byte
	if _, err := io.ReadFull(r.br, rec[:]); err != nil {
		return posting{}, false, err
	}
	r.cur++
	return posting{
		hash: binary.LittleEndian.Uint64(rec[0:8]),
		did:  binary.LittleEndian.Uint32(rec[8:12]),
	}, true, nil
}

func (r *runReader) close() error {
	r.zr.Close()
	return r.f.Close()
}
