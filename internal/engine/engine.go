// Package engine is the sort orchestrator: it plans chunk boundaries
// over the input file, runs the chunking phase (parallel sort workers
// feeding a bounded queue drained by a small writer pool), then
// invokes the merge phase to produce the final output.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rooks/filesort/internal/bitscan"
	"github.com/rooks/filesort/internal/bufpool"
	"github.com/rooks/filesort/internal/chunksort"
	"github.com/rooks/filesort/internal/codec"
	"github.com/rooks/filesort/internal/fsutil"
	"github.com/rooks/filesort/internal/merge"
	"github.com/rooks/filesort/internal/record"
	"github.com/rooks/filesort/internal/sorterr"
	"github.com/rooks/filesort/internal/tempstore"
)

// Options mirrors the public filesort.Options; the root package
// translates one into the other so this package never imports back up
// to its caller.
type Options struct {
	ChunkSize      int64
	ParallelDegree int
	TempDirectory  string
	MergeWidth     int
}

// Phase identifies which stage of the sort progress refers to.
type Phase int

const (
	PhaseChunking Phase = iota
	PhaseMerging
	PhaseDone
)

// Progress mirrors the public filesort.SortProgress.
type Progress struct {
	Phase   Phase
	Current int64
	Total   int64
}

// ProgressFunc mirrors the public filesort.ProgressFunc.
type ProgressFunc func(Progress)

const (
	memoryUsageRatio = 0.6
	minChunkSize     = 64 * 1024 * 1024
	maxChunkSize     = 1024 * 1024 * 1024

	minMergeWidth = 8
	maxMergeWidth = 64

	probeSize = 64 * 1024
)

// resolveOptions fills zero-valued fields with their computed
// defaults: the usual "if cfg.X <= 0 { cfg.X = default }" pattern.
func resolveOptions(o Options) Options {
	if o.ParallelDegree <= 0 {
		o.ParallelDegree = runtime.NumCPU()
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = computeDefaultChunkSize(o.ParallelDegree)
	}
	if o.MergeWidth <= 0 {
		o.MergeWidth = clampInt(4*o.ParallelDegree, minMergeWidth, maxMergeWidth)
	}
	return o
}

func computeDefaultChunkSize(workerCount int) int64 {
	total := totalSystemMemory()
	raw := float64(total) * memoryUsageRatio / float64(workerCount)
	return clampInt64(int64(raw), minChunkSize, maxChunkSize)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FileRange is a [Start, End) byte span of the input aligned to line
// boundaries.
type FileRange struct {
	Start int64
	End   int64
}

// Sort runs the full chunk/sort/merge pipeline over inputPath,
// producing outputPath. progress may be nil.
func Sort(ctx context.Context, inputPath, outputPath string, opts Options, progress ProgressFunc) error {
	if progress == nil {
		progress = func(Progress) {}
	}
	opts = resolveOptions(opts)

	in, err := os.Open(inputPath)
	if err != nil {
		return sorterr.New(sorterr.InputUnavailable, err)
	}
	defer in.Close()
	fsutil.AdviseSequential(in)

	stat, err := in.Stat()
	if err != nil {
		return sorterr.New(sorterr.InputUnavailable, err)
	}
	fileLength := stat.Size()

	if fileLength == 0 {
		if err := writeEmptyFile(outputPath); err != nil {
			return sorterr.New(sorterr.OutputUnavailable, err)
		}
		progress(Progress{Phase: PhaseDone, Current: 0, Total: 0})
		return nil
	}

	ranges, err := planRanges(in, fileLength, opts.ChunkSize)
	if err != nil {
		return sorterr.New(sorterr.InputUnavailable, err)
	}

	reg, err := tempstore.Open(opts.TempDirectory)
	if err != nil {
		return sorterr.New(sorterr.TempUnavailable, err)
	}
	defer reg.Dispose()

	compressPhase1 := len(ranges) > opts.MergeWidth

	chunkSources, err := runChunkingPhase(ctx, in, ranges, fileLength, opts, reg, compressPhase1, progress)
	if err != nil {
		return classifyPipelineError(err)
	}

	progress(Progress{Phase: PhaseMerging, Current: 0, Total: fileLength})

	if len(chunkSources) == 0 {
		if err := writeEmptyFile(outputPath); err != nil {
			return sorterr.New(sorterr.OutputUnavailable, err)
		}
		progress(Progress{Phase: PhaseDone, Current: fileLength, Total: fileLength})
		return nil
	}

	mergeParallelism := clampInt(opts.ParallelDegree/2, 1, opts.ParallelDegree)
	if err := merge.Run(ctx, reg, chunkSources, opts.MergeWidth, mergeParallelism, outputPath); err != nil {
		return classifyPipelineError(err)
	}

	progress(Progress{Phase: PhaseDone, Current: fileLength, Total: fileLength})
	return nil
}

func writeEmptyFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// classifyPipelineError maps an error surfaced from the chunking or
// merge phase to the engine's typed error vocabulary: a context
// cancellation/deadline becomes Cancelled, a failure tagged by
// codec.Wrap at its origin (chunksort/chunkreader/merge) becomes
// CodecError, and everything else is treated as a resource or I/O
// failure reported as ResourceExhausted, since by the time it reaches
// here it is neither an input-open nor an output-create failure (those
// are classified at their own call sites).
func classifyPipelineError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return sorterr.New(sorterr.Cancelled, err)
	}
	if errors.Is(err, codec.ErrCodec) {
		return sorterr.New(sorterr.CodecError, err)
	}
	return sorterr.New(sorterr.ResourceExhausted, err)
}

// planRanges splits [0, fileLength) into line-boundary-aligned ranges
// of approximately chunkSize bytes each, per §4.8's boundary-probing
// algorithm.
func planRanges(f *os.File, fileLength, chunkSize int64) ([]FileRange, error) {
	rangeCount := (fileLength + chunkSize - 1) / chunkSize
	boundaries := make([]int64, rangeCount+1)
	boundaries[rangeCount] = fileLength

	for i := int64(1); i < rangeCount; i++ {
		candidate := i * chunkSize
		b, err := probeBoundary(f, candidate, fileLength)
		if err != nil {
			return nil, err
		}
		if b < boundaries[i-1] {
			b = boundaries[i-1]
		}
		boundaries[i] = b
	}

	ranges := make([]FileRange, 0, rangeCount)
	for i := int64(0); i < rangeCount; i++ {
		if boundaries[i+1] > boundaries[i] {
			ranges = append(ranges, FileRange{Start: boundaries[i], End: boundaries[i+1]})
		}
	}
	return ranges, nil
}

// probeBoundary seeks to candidate and scans forward for the first
// '\n', extending the probe window if one isn't found within the
// first read. Returns fileLength if none is found before EOF.
func probeBoundary(f *os.File, candidate, fileLength int64) (int64, error) {
	if candidate >= fileLength {
		return fileLength, nil
	}

	buf := make([]byte, probeSize)
	pos := candidate
	for {
		n, err := f.ReadAt(buf, pos)
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("engine: probe boundary at %d: %w", pos, err)
		}
		if idx := bitscan.IndexNewline(buf[:n], 0); idx >= 0 {
			return pos + int64(idx) + 1, nil
		}
		pos += int64(n)
		if err == io.EOF || pos >= fileLength || n == 0 {
			return fileLength, nil
		}
	}
}

// writeJob carries one sorted range from a sort worker to a writer.
type writeJob struct {
	index    int
	lines    []record.ParsedLine
	buf      []byte
	path     string
	compress bool
}

func runChunkingPhase(ctx context.Context, f *os.File, ranges []FileRange, fileLength int64, opts Options, reg *tempstore.Registry, compress bool, progress ProgressFunc) ([]merge.Source, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	rangePool := bufpool.NewRangePool()
	chunkSources := make([]merge.Source, len(ranges))

	queueCapacity := clampInt(opts.ParallelDegree/2, 2, opts.ParallelDegree*2+2)
	jobs := make(chan writeJob, queueCapacity)

	writerCount := clampInt(opts.ParallelDegree/4, 1, 4)

	rangeGroup, rangeCtx := errgroup.WithContext(ctx)
	rangeGroup.SetLimit(opts.ParallelDegree)

	writerGroup, writerCtx := errgroup.WithContext(rangeCtx)
	writerGroup.SetLimit(writerCount)

	var bytesProcessed int64
	var progressMu sync.Mutex // guards bytesProcessed and ordering of progress calls

	for w := 0; w < writerCount; w++ {
		writerGroup.Go(func() error {
			for {
				select {
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					err := chunksort.WriteChunk(job.path, job.lines, job.compress)
					rangePool.Put(job.buf)
					if err != nil {
						return fmt.Errorf("engine: write chunk: %w", err)
					}
					chunkSources[job.index] = merge.Source{Path: job.path, Compressed: job.compress}
				case <-writerCtx.Done():
					return writerCtx.Err()
				}
			}
		})
	}

	for idx, rng := range ranges {
		idx, rng := idx, rng
		rangeGroup.Go(func() error {
			select {
			case <-rangeCtx.Done():
				return rangeCtx.Err()
			default:
			}

			size := int(rng.End - rng.Start)
			buf := rangePool.Get(size)
			if _, err := f.ReadAt(buf, rng.Start); err != nil && err != io.EOF {
				rangePool.Put(buf)
				return fmt.Errorf("engine: read range [%d,%d): %w", rng.Start, rng.End, err)
			}

			lines := chunksort.SortChunk(buf)

			// The increment and the report must happen under the same
			// lock: if these were split (e.g. an atomic.AddInt64 outside
			// the mutex, then a separate lock/report), a goroutine could
			// be descheduled between the two, letting a later-incrementing
			// goroutine report its larger value first. Current must never
			// decrease within a phase, so the reported value is derived
			// from the counter at the moment the lock is held, not before.
			progressMu.Lock()
			bytesProcessed += int64(size)
			progress(Progress{Phase: PhaseChunking, Current: bytesProcessed, Total: fileLength})
			progressMu.Unlock()

			path := reg.NewChunkPath()
			job := writeJob{index: idx, lines: lines, buf: buf, path: path, compress: compress}

			select {
			case jobs <- job:
				return nil
			case <-rangeCtx.Done():
				rangePool.Put(buf)
				return rangeCtx.Err()
			case <-writerCtx.Done():
				// A writer failed: writerCtx is a child of rangeCtx, so
				// its cancellation doesn't propagate upward. Without this
				// case a range worker could block forever offering to a
				// queue nobody is draining anymore.
				rangePool.Put(buf)
				return writerCtx.Err()
			}
		})
	}

	var rangeErr error
	done := make(chan struct{})
	go func() {
		rangeErr = rangeGroup.Wait()
		close(jobs)
		close(done)
	}()

	writerErr := writerGroup.Wait()
	<-done

	if rangeErr != nil {
		return nil, rangeErr
	}
	if writerErr != nil {
		return nil, writerErr
	}
	return chunkSources, nil
}
