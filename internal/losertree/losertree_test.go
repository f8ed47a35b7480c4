package losertree

import (
	"math/rand"
	"testing"
)

func less(a, b int) bool { return a < b }

func TestBasicOrdering(t *testing.T) {
	tr := New(4, less)
	tr.SetLeaf(0, 5)
	tr.SetLeaf(1, 2)
	tr.SetLeaf(2, 8)
	tr.SetLeaf(3, 1)
	tr.Build()

	if got := tr.WinnerValue(); got != 1 {
		t.Fatalf("WinnerValue() = %d, want 1", got)
	}
	if tr.WinnerIndex() != 3 {
		t.Fatalf("WinnerIndex() = %d, want 3", tr.WinnerIndex())
	}
}

func TestEmptyTree(t *testing.T) {
	tr := New[int](0, less)
	tr.Build()
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tr.Len())
	}
	if tr.WinnerIndex() != -1 {
		t.Fatalf("WinnerIndex() = %d, want -1", tr.WinnerIndex())
	}
}

func TestSingleLeaf(t *testing.T) {
	tr := New(1, less)
	tr.SetLeaf(0, 42)
	tr.Build()
	if tr.WinnerIndex() != 0 || tr.WinnerValue() != 42 {
		t.Fatalf("unexpected winner: idx=%d val=%d", tr.WinnerIndex(), tr.WinnerValue())
	}
	tr.DeactivateWinner()
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after deactivating the only leaf", tr.Len())
	}
}

// TestMergeExtractsNonDecreasingAndExhaustive checks that for random
// k <= 1024, feeding each leaf a stream of
// ascending integers (simulating k sorted runs) and repeatedly
// extracting the winner, replacing it with the next value from that
// leaf's stream (or deactivating when the stream is exhausted), must
// produce a globally non-decreasing sequence that visits every value
// from every stream exactly once.
func TestMergeExtractsNonDecreasingAndExhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		k := rng.Intn(1024) + 1
		streams := make([][]int, k)
		total := 0
		for i := range streams {
			n := rng.Intn(20)
			vals := make([]int, n)
			v := 0
			for j := 0; j < n; j++ {
				v += rng.Intn(5)
				vals[j] = v
			}
			streams[i] = vals
			total += n
		}

		tr := New(k, less)
		cursor := make([]int, k)
		for i := 0; i < k; i++ {
			if len(streams[i]) > 0 {
				tr.SetLeaf(i, streams[i][0])
				cursor[i] = 1
			}
		}
		tr.Build()

		var extracted []int
		seenPerStream := make([]int, k)
		last := -1 << 62
		for tr.Len() > 0 {
			w := tr.WinnerIndex()
			v := tr.WinnerValue()
			if v < last {
				t.Fatalf("trial %d: non-decreasing violated: %d after %d", trial, v, last)
			}
			last = v
			extracted = append(extracted, v)
			seenPerStream[w]++

			if cursor[w] < len(streams[w]) {
				tr.ReplaceWinner(streams[w][cursor[w]])
				cursor[w]++
			} else {
				tr.DeactivateWinner()
			}
		}

		if len(extracted) != total {
			t.Fatalf("trial %d: extracted %d values, want %d", trial, len(extracted), total)
		}
		for i := range streams {
			if seenPerStream[i] != len(streams[i]) {
				t.Fatalf("trial %d: stream %d contributed %d values, want %d", trial, i, seenPerStream[i], len(streams[i]))
			}
		}
	}
}

func TestDeactivateAllLeavesEmptiesTree(t *testing.T) {
	tr := New(5, less)
	for i := 0; i < 5; i++ {
		tr.SetLeaf(i, i)
	}
	tr.Build()
	for tr.Len() > 0 {
		tr.DeactivateWinner()
	}
	if tr.WinnerIndex() != -1 {
		t.Fatalf("expected -1 winner index on empty tree, got %d", tr.WinnerIndex())
	}
}
