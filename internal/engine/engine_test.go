package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rooks/filesort/internal/codec"
	"github.com/rooks/filesort/internal/record"
	"github.com/rooks/filesort/internal/sorterr"
)

func TestClassifyPipelineErrorCodec(t *testing.T) {
	wrapped := fmt.Errorf("chunkreader: read: %w", codec.Wrap(errors.New("checksum mismatch")))
	err := classifyPipelineError(wrapped)
	se, ok := err.(*sorterr.SortError)
	if !ok {
		t.Fatalf("expected *sorterr.SortError, got %T", err)
	}
	if se.Kind != sorterr.CodecError {
		t.Fatalf("expected CodecError, got %v", se.Kind)
	}
}

func TestClassifyPipelineErrorResourceExhausted(t *testing.T) {
	err := classifyPipelineError(errors.New("disk full"))
	se, ok := err.(*sorterr.SortError)
	if !ok {
		t.Fatalf("expected *sorterr.SortError, got %T", err)
	}
	if se.Kind != sorterr.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", se.Kind)
	}
}

func TestResolveOptionsDefaults(t *testing.T) {
	o := resolveOptions(Options{})
	if o.ParallelDegree <= 0 {
		t.Fatalf("ParallelDegree not defaulted: %d", o.ParallelDegree)
	}
	if o.ChunkSize < minChunkSize || o.ChunkSize > maxChunkSize {
		t.Fatalf("ChunkSize out of range: %d", o.ChunkSize)
	}
	if o.MergeWidth < minMergeWidth || o.MergeWidth > maxMergeWidth {
		t.Fatalf("MergeWidth out of range: %d", o.MergeWidth)
	}
}

func TestResolveOptionsPreservesUserValues(t *testing.T) {
	o := resolveOptions(Options{ChunkSize: 123, ParallelDegree: 7, MergeWidth: 9, TempDirectory: "/tmp/x"})
	if o.ChunkSize != 123 || o.ParallelDegree != 7 || o.MergeWidth != 9 || o.TempDirectory != "/tmp/x" {
		t.Fatalf("user values not preserved: %+v", o)
	}
}

func TestPlanRangesSingleRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in")
	content := "1. a\n2. b\n3. c\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	ranges, err := planRanges(f, int64(len(content)), 1024)
	if err != nil {
		t.Fatalf("planRanges: %v", err)
	}
	if len(ranges) != 1 || ranges[0].Start != 0 || ranges[0].End != int64(len(content)) {
		t.Fatalf("got %+v", ranges)
	}
}

func TestPlanRangesMultipleAlignedToNewlines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in")

	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf("%d. value-%d", i, i))
	}
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	ranges, err := planRanges(f, int64(len(content)), 256)
	if err != nil {
		t.Fatalf("planRanges: %v", err)
	}
	if len(ranges) < 2 {
		t.Fatalf("expected multiple ranges, got %d", len(ranges))
	}
	if ranges[0].Start != 0 {
		t.Fatalf("first range must start at 0")
	}
	if ranges[len(ranges)-1].End != int64(len(content)) {
		t.Fatalf("last range must end at file length")
	}
	for i, r := range ranges {
		if r.End < r.Start {
			t.Fatalf("range %d has End < Start", i)
		}
		if r.End < int64(len(content)) {
			if content[r.End-1] != '\n' {
				t.Fatalf("range %d boundary %d is not immediately after a newline", i, r.End)
			}
		}
		if i > 0 && r.Start != ranges[i-1].End {
			t.Fatalf("ranges %d and %d are not contiguous", i-1, i)
		}
	}
}

func TestSortEndToEndSmall(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	outPath := filepath.Join(dir, "out")

	content := "5. Banana\n1. Apple\n3. Apple\n2. Cherry\n4. Banana\n"
	if err := os.WriteFile(inPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	err := Sort(context.Background(), inPath, outPath, Options{ParallelDegree: 2}, nil)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	var got []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	want := []string{"1. Apple", "3. Apple", "4. Banana", "5. Banana", "2. Cherry"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSortEmptyInput(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	outPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inPath, nil, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	if err := Sort(context.Background(), inPath, outPath, Options{}, nil); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	stat, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if stat.Size() != 0 {
		t.Fatalf("expected empty output, got %d bytes", stat.Size())
	}
}

func TestSortForcedMultiChunk(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	outPath := filepath.Join(dir, "out")

	var content string
	for i := 0; i < 1000; i++ {
		content += fmt.Sprintf("%d. word-%d\n", i, i%37)
	}
	if err := os.WriteFile(inPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	err := Sort(context.Background(), inPath, outPath, Options{ChunkSize: 1024, ParallelDegree: 2}, nil)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	var got []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	if len(got) != 1000 {
		t.Fatalf("got %d lines, want 1000", len(got))
	}
	for i := 1; i < len(got); i++ {
		a, err := record.Parse([]byte(got[i-1]))
		if err != nil {
			t.Fatalf("parse %q: %v", got[i-1], err)
		}
		b, err := record.Parse([]byte(got[i]))
		if err != nil {
			t.Fatalf("parse %q: %v", got[i], err)
		}
		if record.Compare(a, b) > 0 {
			t.Fatalf("not sorted at %d: %q > %q", i, got[i-1], got[i])
		}
	}
}
