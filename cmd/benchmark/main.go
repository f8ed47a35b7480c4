package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rooks/filesort"
)

func main() {
	sizeMB := 500 // Default 500MB
	if len(os.Args) > 1 {
		fmt.Sscanf(os.Args[1], "%d", &sizeMB)
	}

	fmt.Printf("Generating %s of line data...\n", humanize.IBytes(uint64(sizeMB)*1024*1024))
	tmpDir, _ := os.MkdirTemp("", "filesort_bench")
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "bench.in")
	outPath := filepath.Join(tmpDir, "bench.out")

	f, err := os.Create(inPath)
	if err != nil {
		panic(err)
	}

	w := bufio.NewWriterSize(f, 64*1024)

	bytesWritten := int64(0)
	limit := int64(sizeMB) * 1024 * 1024

	rows := 0
	buf := make([]byte, 0, 256)
	rng := rand.New(rand.NewSource(123))

	for bytesWritten < limit {
		rows++
		buf = buf[:0]
		buf = fmt.Appendf(buf, "%d. item-%d with some padding to make it longer\n", rng.Intn(1_000_000_000), rows%10000)

		n, _ := w.Write(buf)
		bytesWritten += int64(n)
	}
	w.Flush()
	f.Close()

	fmt.Printf("Generated %d rows (%s)\n", rows, humanize.IBytes(uint64(bytesWritten)))

	fmt.Println("Starting sort...")

	opts := filesort.Options{
		ParallelDegree: runtime.NumCPU(),
	}

	start := time.Now()
	lastPhase := filesort.Phase(-1)
	err = filesort.Sort(context.Background(), inPath, outPath, opts, func(p filesort.SortProgress) {
		if p.Phase != lastPhase {
			fmt.Println()
			lastPhase = p.Phase
		}
		fmt.Printf("\r%-10s %s / %s", phaseName(p.Phase), humanize.IBytes(uint64(p.Current)), humanize.IBytes(uint64(p.Total)))
	})
	elapsed := time.Since(start)
	if err != nil {
		panic(err)
	}

	mbPerSec := float64(bytesWritten) / 1024 / 1024 / elapsed.Seconds()
	fmt.Printf("\n--------------------------------------------------\n")
	fmt.Printf("Throughput: %.2f MiB/s\n", mbPerSec)
	fmt.Printf("Time:       %v\n", elapsed)
	fmt.Printf("--------------------------------------------------\n")
}

func phaseName(p filesort.Phase) string {
	switch p {
	case filesort.PhaseChunking:
		return "chunking"
	case filesort.PhaseMerging:
		return "merging"
	case filesort.PhaseDone:
		return "done"
	default:
		return "?"
	}
}
