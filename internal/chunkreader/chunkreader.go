// Package chunkreader streams records back out of one chunk or
// merge-intermediate file written by chunksort or merge, transparently
// decompressing when the source was written compressed. It is the
// per-source half of the merge phase's fan-in.
package chunkreader

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/rooks/filesort/internal/bufpool"
	"github.com/rooks/filesort/internal/codec"
	"github.com/rooks/filesort/internal/record"
)

// Reader streams record.ParsedLine values out of a single chunk file
// in the order they were written (already sorted, by construction).
// Not safe for concurrent use; each merge source owns one Reader.
type Reader struct {
	f          *os.File
	br         *bufio.Reader
	buf        []byte // growable line buffer reused across Next calls
	err        error
	compressed bool
}

// Open opens path for streaming. When compressed is true, reads are
// passed through codec.Default first.
func Open(path string, compressed bool) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chunkreader: open %s: %w", path, err)
	}

	var src io.Reader = f
	if compressed {
		src = codec.Default.NewReader(f)
	}

	return &Reader{
		f:          f,
		br:         bufio.NewReaderSize(src, bufpool.ReadBufferSize),
		buf:        make([]byte, 0, 256),
		compressed: compressed,
	}, nil
}

// Next returns the next record in the file. The returned ParsedLine
// borrows the Reader's internal buffer and is only valid until the
// next call to Next or Close. ok is false once the file is exhausted;
// callers must check Err afterward to distinguish EOF from failure.
func (r *Reader) Next() (line record.ParsedLine, ok bool) {
	if r.err != nil {
		return record.ParsedLine{}, false
	}

	raw, err := r.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// The line is longer than the bufio buffer: accumulate it
		// manually rather than failing a record that's merely long.
		r.buf = r.buf[:0]
		r.buf = append(r.buf, raw...)
		for err == bufio.ErrBufferFull {
			raw, err = r.br.ReadSlice('\n')
			r.buf = append(r.buf, raw...)
		}
		raw = r.buf
	}
	if err != nil && err != io.EOF {
		if r.compressed {
			err = codec.Wrap(err)
		}
		r.err = fmt.Errorf("chunkreader: read: %w", err)
		return record.ParsedLine{}, false
	}
	if len(raw) == 0 {
		if err == io.EOF {
			return record.ParsedLine{}, false
		}
	}

	trimmed := raw
	if n := len(trimmed); n > 0 && trimmed[n-1] == '\n' {
		trimmed = trimmed[:n-1]
	}
	if len(trimmed) == 0 && err == io.EOF {
		return record.ParsedLine{}, false
	}

	p, perr := record.Parse(trimmed)
	if perr != nil {
		// A malformed line surviving into a chunk file would indicate
		// a bug upstream (chunksort already filters these), but stay
		// consistent with the "skip, don't abort" rule rather than
		// panicking on a corrupt intermediate.
		return r.Next()
	}
	return p, true
}

// Err returns the first non-EOF error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
