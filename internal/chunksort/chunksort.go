// Package chunksort turns one raw input range into one sorted,
// optionally compressed chunk file: the per-chunk half of the
// chunking phase.
package chunksort

import (
	"fmt"
	"io"
	"os"

	"github.com/rooks/filesort/internal/bitscan"
	"github.com/rooks/filesort/internal/bufpool"
	"github.com/rooks/filesort/internal/codec"
	"github.com/rooks/filesort/internal/quicksort"
	"github.com/rooks/filesort/internal/record"
)

// estimatedBytesPerLine sizes the initial slice capacity for
// SortChunk; an under-estimate just costs a few slice growths, never
// correctness.
const estimatedBytesPerLine = 32

// SortChunk splits data into lines, parses each one, and returns them
// sorted according to record.Compare. Lines that fail to parse are
// silently skipped: a malformed line never aborts the sort, per the
// system's edge-case handling.
func SortChunk(data []byte) []record.ParsedLine {
	lines := make([]record.ParsedLine, 0, len(data)/estimatedBytesPerLine+1)
	bitscan.Lines(data, func(line []byte) {
		if len(line) == 0 {
			return
		}
		p, err := record.Parse(line)
		if err != nil {
			return
		}
		lines = append(lines, p)
	})
	quicksort.Sort(lines)
	return lines
}

// WriteChunk writes lines, one per line terminated by '\n', to a new
// file at path. When compress is true the bytes are run through
// codec.Default before hitting disk, and the temporary intermediate is
// smaller at the cost of CPU during both this write and the later
// chunkreader pass over it.
func WriteChunk(path string, lines []record.ParsedLine, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chunksort: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var dst io.Writer = f
	var wc io.WriteCloser
	if compress {
		wc = codec.Default.NewWriter(f)
		dst = wc
	}

	staging := bufpool.GetStaging()
	defer bufpool.PutStaging(staging)
	buf := (*staging)[:0:cap(*staging)]

	// wrapIfCompressed tags a dst.Write failure as a codec-layer failure
	// only when dst is actually the compressing writer; an uncompressed
	// write failure is a plain I/O error, not a CodecError.
	wrapIfCompressed := func(werr error) error {
		if compress {
			return codec.Wrap(werr)
		}
		return werr
	}

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		_, werr := dst.Write(buf)
		buf = buf[:0]
		return wrapIfCompressed(werr)
	}

	for _, l := range lines {
		line := l.Bytes()
		if len(buf)+len(line)+1 > cap(buf) {
			if err = flush(); err != nil {
				return fmt.Errorf("chunksort: write %s: %w", path, err)
			}
		}
		if len(line)+1 > cap(buf) {
			// Single record larger than the staging buffer: write it
			// directly rather than growing the pooled buffer.
			if _, werr := dst.Write(line); werr != nil {
				return fmt.Errorf("chunksort: write %s: %w", path, wrapIfCompressed(werr))
			}
			if _, werr := dst.Write([]byte{'\n'}); werr != nil {
				return fmt.Errorf("chunksort: write %s: %w", path, wrapIfCompressed(werr))
			}
			continue
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err = flush(); err != nil {
		return fmt.Errorf("chunksort: flush %s: %w", path, err)
	}
	*staging = buf
	if wc != nil {
		if werr := wc.Close(); werr != nil {
			return fmt.Errorf("chunksort: close codec writer for %s: %w", path, codec.Wrap(werr))
		}
	}
	return nil
}
