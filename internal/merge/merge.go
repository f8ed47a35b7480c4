// Package merge implements the k-way merge phase: collapsing N sorted
// chunk files into one sorted output, batching into multiple passes
// through bounded-width intermediates when N exceeds the configured
// merge width, built on a loser tree instead of a container/heap.
package merge

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/rooks/filesort/internal/bufpool"
	"github.com/rooks/filesort/internal/chunkreader"
	"github.com/rooks/filesort/internal/codec"
	"github.com/rooks/filesort/internal/losertree"
	"github.com/rooks/filesort/internal/record"
	"github.com/rooks/filesort/internal/tempstore"
)

// Source identifies one sorted input to a merge: a file path and
// whether it was written through codec.Default.
type Source struct {
	Path       string
	Compressed bool
}

// Run collapses sources into a single sorted file at outputPath
// (always written uncompressed, since it is the engine's final or
// caller-visible output). When len(sources) exceeds mergeWidth, Run
// batches sources into intermediate merge passes, each intermediate
// written compressed and registered with reg for cleanup, until one
// final batch of at most mergeWidth sources remains.
//
// parallelDegree bounds how many batches within a single pass run
// concurrently; each batch is itself single-threaded (a k-way merge
// doesn't parallelize internally), so pass-level concurrency is where
// the available cores get used.
func Run(ctx context.Context, reg *tempstore.Registry, sources []Source, mergeWidth, parallelDegree int, outputPath string) error {
	if mergeWidth < 2 {
		mergeWidth = 2
	}
	if parallelDegree < 1 {
		parallelDegree = 1
	}

	current := sources
	pass := 0
	for len(current) > mergeWidth {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		pass++
		batches := splitBatches(current, mergeWidth)
		next := make([]Source, len(batches))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallelDegree)
		for i, batch := range batches {
			i, batch := i, batch
			g.Go(func() error {
				path := reg.NewMergePath(pass, i)
				if err := mergeBatch(gctx, batch, path, true); err != nil {
					return err
				}
				next[i] = Source{Path: path, Compressed: true}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		current = next
	}

	return mergeBatch(ctx, current, outputPath, false)
}

func splitBatches(sources []Source, width int) [][]Source {
	var batches [][]Source
	for i := 0; i < len(sources); i += width {
		end := i + width
		if end > len(sources) {
			end = len(sources)
		}
		batches = append(batches, sources[i:end])
	}
	return batches
}

// mergeBatch performs one k-way merge of batch into a single file at
// outPath, optionally compressing the output.
func mergeBatch(ctx context.Context, batch []Source, outPath string, compressOutput bool) (err error) {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	readers := make([]*chunkreader.Reader, len(batch))
	defer func() {
		for _, r := range readers {
			if r != nil {
				_ = r.Close()
			}
		}
	}()

	for i, src := range batch {
		r, oerr := chunkreader.Open(src.Path, src.Compressed)
		if oerr != nil {
			return fmt.Errorf("merge: %w", oerr)
		}
		readers[i] = r
	}

	tree := losertree.New(len(batch), func(a, b record.ParsedLine) bool {
		return record.Compare(a, b) < 0
	})
	for i, r := range readers {
		if line, ok := r.Next(); ok {
			tree.SetLeaf(i, line)
		}
	}
	tree.Build()

	out, cerr := os.Create(outPath)
	if cerr != nil {
		return fmt.Errorf("merge: create %s: %w", outPath, cerr)
	}
	defer func() {
		if clerr := out.Close(); err == nil {
			err = clerr
		}
	}()

	var dst io.Writer = out
	var wc io.WriteCloser
	if compressOutput {
		wc = codec.Default.NewWriter(out)
		dst = wc
	}

	staging := bufpool.GetStaging()
	defer bufpool.PutStaging(staging)
	buf := (*staging)[:0:cap(*staging)]

	// wrapIfCompressed tags a dst.Write failure as a codec-layer failure
	// only when dst is actually the compressing writer; an uncompressed
	// write failure is a plain I/O error, not a CodecError.
	wrapIfCompressed := func(werr error) error {
		if compressOutput {
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

	checkEvery := 4096
	iterations := 0
	for tree.Len() > 0 {
		iterations++
		if iterations%checkEvery == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		widx := tree.WinnerIndex()
		val := tree.WinnerValue()

		line := val.Bytes()
		if len(buf)+len(line)+1 > cap(buf) {
			if err = flush(); err != nil {
				return fmt.Errorf("merge: write %s: %w", outPath, err)
			}
		}
		if len(line)+1 > cap(buf) {
			if _, werr := dst.Write(line); werr != nil {
				return fmt.Errorf("merge: write %s: %w", outPath, wrapIfCompressed(werr))
			}
			if _, werr := dst.Write([]byte{'\n'}); werr != nil {
				return fmt.Errorf("merge: write %s: %w", outPath, wrapIfCompressed(werr))
			}
		} else {
			buf = append(buf, line...)
			buf = append(buf, '\n')
		}

		next, ok := readers[widx].Next()
		if ok {
			tree.ReplaceWinner(next)
		} else {
			if rerr := readers[widx].Err(); rerr != nil {
				return fmt.Errorf("merge: %w", rerr)
			}
			tree.DeactivateWinner()
		}
	}

	if err = flush(); err != nil {
		return fmt.Errorf("merge: flush %s: %w", outPath, err)
	}
	*staging = buf
	if wc != nil {
		if werr := wc.Close(); werr != nil {
			return fmt.Errorf("merge: close codec writer for %s: %w", outPath, codec.Wrap(werr))
		}
	}
	return nil
}
