// Package codec wraps the streaming block compressor used for
// intermediate chunk and merge-pass files. The compression algorithm
// is a configuration point by design: Codec is the seam, LZ4 is the
// only implementation shipped, tuned for fastest compression with a
// 64KB block size.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// ErrCodec marks a failure in the compression or decompression layer
// of an intermediate stream, as distinct from a plain I/O failure on
// the underlying file. Callers use Wrap at the point a codec-layer
// read, write, or close fails so that a higher layer can tell a
// corrupt/truncated compressed stream apart from e.g. a full disk.
var ErrCodec = errors.New("codec: compress/decompress stream failure")

// Wrap tags err as having occurred in the codec layer. Returns nil if
// err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCodec, err)
}

// Codec wraps a stream in a block-oriented, single-pass,
// concatenation-safe compressor, and unwraps it again on read.
type Codec interface {
	NewWriter(w io.Writer) io.WriteCloser
	NewReader(r io.Reader) io.Reader
}

// LZ4 is the default Codec, tuned for fast intermediate-file
// round-trips rather than maximum ratio.
type LZ4 struct{}

// NewWriter wraps w in an LZ4 stream writer using 64KB blocks.
func (LZ4) NewWriter(w io.Writer) io.WriteCloser {
	lw := lz4.NewWriter(w)
	_ = lw.Apply(lz4.BlockSizeOption(lz4.Block64Kb))
	return lw
}

// NewReader wraps r in an LZ4 stream reader.
func (LZ4) NewReader(r io.Reader) io.Reader {
	return lz4.NewReader(r)
}

// Default is the codec used when the engine is not configured with a
// different one.
var Default Codec = LZ4{}
