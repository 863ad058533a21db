package builder

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

// rawLine is one non-empty JSONL line, numbered for diagnostics.
type rawLine struct {
	lineNo int64
	data   []byte
}

const readerBatchSize = 256

// readLines scans r line by line and pushes batches of up to
// readerBatchSize non-empty lines onto out, blocking when out is full —
// the bounded-queue back-pressure spec.md §4.4 step 1 describes. It
// stops early if ctx is cancelled (a worker failed). The channel is
// always closed before returning, whether due to EOF, a read error, or
// cancellation.
func readLines(ctx context.Context, r io.Reader, out chan<- []rawLine) (linesRead int64, err error) {
	defer close(out)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 32<<20)

	batch := make([]rawLine, 0, readerBatchSize)
	var lineNo int64

	push := func() bool {
		if len(batch) == 0 {
			return true
		}
		select {
		case out <- batch:
			batch = make([]rawLine, 0, readerBatchSize)
			return true
		case <-ctx.Done():
			return false
		}
	}

	for sc.Scan() {
		lineNo++
		linesRead++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		batch = append(batch, rawLine{lineNo: lineNo, data: append([]byte(nil), line...)})
		if len(batch) >= readerBatchSize {
			if !push() {
				return linesRead, ctx.Err()
			}
		}
	}
	if !push() {
		return linesRead, ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return linesRead, err
	}
	return linesRead, nil
}
