// gendata writes a "<Number>. <String>\n" file of a requested
// approximate size, for generating test and benchmark input.
package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: gendata <output_path> <size_mb>")
		os.Exit(1)
	}

	outPath := os.Args[1]
	sizeMB, err := strconv.Atoi(os.Args[2])
	if err != nil || sizeMB <= 0 {
		fmt.Println("size_mb must be a positive integer")
		os.Exit(1)
	}

	f, err := os.Create(outPath)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 64*1024)
	defer w.Flush()

	limit := int64(sizeMB) * 1024 * 1024
	rng := rand.New(rand.NewSource(1))

	words := []string{
		"apple", "banana", "cherry", "date", "elderberry", "fig",
		"grape", "honeydew", "kiwi", "lemon", "mango", "nectarine",
		"orange", "papaya", "quince", "raspberry", "strawberry",
		"tangerine", "ugli", "vanilla",
	}

	var written int64
	var rows int
	for written < limit {
		rows++
		line := strconv.Itoa(rng.Intn(1_000_000_000))
		line += ". "
		line += words[rng.Intn(len(words))]
		line += "-"
		line += strconv.Itoa(rng.Intn(10000))
		line += "\n"

		n, werr := w.WriteString(line)
		if werr != nil {
			panic(werr)
		}
		written += int64(n)

		if rows%1_000_000 == 0 {
			fmt.Printf("\rGenerated %d rows (%.1f MB)...", rows, float64(written)/1024/1024)
		}
	}
	fmt.Printf("\nDone: %s (%d rows, %.2f MB)\n", outPath, rows, float64(written)/1024/1024)
}
