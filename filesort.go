// Package filesort externally sorts very large line-oriented text
// files whose records have the form "<Number>. <String>\n": it chunks
// the input at line boundaries, sorts each chunk in memory, spills
// compressed intermediate runs, and merges them back together through
// a tournament loser tree.
package filesort

import (
	"context"

	"github.com/rooks/filesort/internal/engine"
	"github.com/rooks/filesort/internal/sorterr"
)

// Options configures a sort. The zero value is valid: every field
// defaults as documented.
type Options struct {
	// ChunkSize bounds the size of each in-memory sort chunk, in
	// bytes. Zero computes a default from available RAM and
	// ParallelDegree.
	ChunkSize int64

	// ParallelDegree bounds concurrent chunk workers. Zero defaults to
	// runtime.NumCPU().
	ParallelDegree int

	// TempDirectory holds intermediate chunk and merge-pass files.
	// Empty creates a unique, engine-owned directory under
	// os.TempDir(), removed when the sort finishes or is cancelled. A
	// caller-supplied directory is created if missing but never
	// removed.
	TempDirectory string

	// MergeWidth bounds how many sorted runs are combined in one merge
	// pass. Zero derives it from ParallelDegree.
	MergeWidth int
}

// Phase identifies which stage of the sort a SortProgress event
// describes.
type Phase = engine.Phase

const (
	PhaseChunking = engine.PhaseChunking
	PhaseMerging  = engine.PhaseMerging
	PhaseDone     = engine.PhaseDone
)

// SortProgress is one progress observation: Current never decreases
// within a single Phase.
type SortProgress struct {
	Phase   Phase
	Current int64
	Total   int64
}

// ProgressFunc receives SortProgress events during a Sort call. It may
// be called concurrently from multiple goroutines during the chunking
// phase; implementations must be safe for that or do their own
// serialization.
type ProgressFunc func(SortProgress)

// SortError is returned by Sort on any non-recoverable failure. Kind
// classifies the failure; errors.Is/errors.As work against both
// SortError and the wrapped cause.
type SortError = sorterr.SortError

// Error kind sentinels, usable with errors.Is(err, filesort.ErrX).
var (
	ErrInputUnavailable  = sorterr.New(sorterr.InputUnavailable, nil)
	ErrOutputUnavailable = sorterr.New(sorterr.OutputUnavailable, nil)
	ErrTempUnavailable   = sorterr.New(sorterr.TempUnavailable, nil)
	ErrCancelled         = sorterr.New(sorterr.Cancelled, nil)
	ErrResourceExhausted = sorterr.New(sorterr.ResourceExhausted, nil)
	ErrCodecError        = sorterr.New(sorterr.CodecError, nil)
)

// Sort reads the "<Number>. <String>\n" records in inputPath, orders
// them lexicographically by String with ties broken by ascending
// Number, and writes the result to outputPath. Malformed records are
// silently dropped; every other failure aborts the sort and returns a
// *SortError after best-effort cleanup of any temp state.
//
// ctx is checked before each input range is read, while a sorted range
// waits for the write queue, before each merge pass and batch, and
// every 4096 records within a merge; writing a chunk file does not
// check it. A cancelled or expired ctx surfaces as ErrCancelled.
// progress may be nil.
func Sort(ctx context.Context, inputPath, outputPath string, opts Options, progress ProgressFunc) error {
	engineOpts := engine.Options{
		ChunkSize:      opts.ChunkSize,
		ParallelDegree: opts.ParallelDegree,
		TempDirectory:  opts.TempDirectory,
		MergeWidth:     opts.MergeWidth,
	}

	var engineProgress engine.ProgressFunc
	if progress != nil {
		engineProgress = func(p engine.Progress) {
			progress(SortProgress{Phase: p.Phase, Current: p.Current, Total: p.Total})
		}
	}

	return engine.Sort(ctx, inputPath, outputPath, engineOpts, engineProgress)
}
