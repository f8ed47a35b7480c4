// Package quicksort implements the in-memory sort applied to each
// chunk: a three-way (Dutch national flag) partitioning quicksort on
// the record's string part, with a cheap numeric-only inner sort over
// the region of records whose string parts are equal. Partitioning on
// three-way equality is what makes the cost of the string comparison
// (the expensive part of the order) independent of how many duplicate
// strings a chunk contains — once a run of equal strings is isolated,
// the remaining order within it is just an integer sort.
package quicksort

import (
	"sort"

	"github.com/rooks/filesort/internal/record"
)

// insertionThreshold is the slice length below which insertion sort
// outperforms partitioning, due to its lower constant factor and
// better cache behavior on small, already-mostly-ordered runs.
const insertionThreshold = 32

// Sort orders lines in place according to record.Compare.
func Sort(lines []record.ParsedLine) {
	if len(lines) < 2 {
		return
	}
	maxDepth := 2 * depthLimit(len(lines))
	sortRange(lines, maxDepth)
}

// depthLimit returns a recursion budget proportional to log2(n), the
// same guard an introsort uses to bound worst-case stack depth against
// pathological (e.g. already-sorted or adversarial) inputs.
func depthLimit(n int) int {
	limit := 0
	for n > 1 {
		n >>= 1
		limit++
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// sortRange partitions and recurses, tail-recursing into the larger of
// the two outer partitions to keep real recursion depth at O(log n)
// even though the call describes both sides.
func sortRange(lines []record.ParsedLine, depth int) {
	for len(lines) >= 2 {
		if len(lines) < insertionThreshold {
			insertionSort(lines)
			return
		}
		if depth <= 0 {
			fallbackSort(lines)
			return
		}
		depth--

		lt, gt := partitionThreeWay(lines)
		sortEqualRegion(lines[lt:gt])

		left, right := lines[:lt], lines[gt:]
		// Recurse into the smaller side, loop over the larger: bounds
		// the explicit call stack to O(log n) regardless of which
		// side ends up bigger after partitioning.
		if len(left) < len(right) {
			sortRange(left, depth)
			lines = right
		} else {
			sortRange(right, depth)
			lines = left
		}
	}
}

// partitionThreeWay performs a Dutch-national-flag partition of lines
// by string part around a median-of-three pivot, returning [lt, gt)
// bounds of the span equal to the pivot. Elements with string part
// less than the pivot end up in lines[:lt], equal in lines[lt:gt],
// greater in lines[gt:].
func partitionThreeWay(lines []record.ParsedLine) (lt, gt int) {
	pivot := medianOfThree(lines)

	lt = 0
	i := 0
	gt = len(lines)

	for i < gt {
		c := compareStrings(lines[i], pivot)
		switch {
		case c < 0:
			lines[lt], lines[i] = lines[i], lines[lt]
			lt++
			i++
		case c > 0:
			gt--
			lines[i], lines[gt] = lines[gt], lines[i]
		default:
			i++
		}
	}
	return lt, gt
}

// medianOfThree picks the median of the first, middle, and last
// element's string parts as the partitioning pivot, avoiding the
// quadratic behavior a fixed pivot choice suffers on sorted input.
func medianOfThree(lines []record.ParsedLine) record.ParsedLine {
	a, b, c := lines[0], lines[len(lines)/2], lines[len(lines)-1]
	if compareStrings(a, b) > 0 {
		a, b = b, a
	}
	if compareStrings(b, c) > 0 {
		b, c = c, b
		if compareStrings(a, b) > 0 {
			a, b = b, a
		}
	}
	return b
}

// compareStrings compares only the string parts of two records,
// ignoring the numeric tiebreak that record.Compare applies — used
// during outer partitioning so that records sharing a string part are
// grouped before the cheaper numeric inner sort runs over them.
func compareStrings(a, b record.ParsedLine) int {
	as, bs := a.String(), b.String()
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			if as[i] < bs[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

// sortEqualRegion sorts a span of records known to share the same
// string part by their numeric value alone, a plain integer sort with
// no byte comparisons.
func sortEqualRegion(lines []record.ParsedLine) {
	if len(lines) < 2 {
		return
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Number() < lines[j].Number()
	})
}

// insertionSort handles small spans directly by the full comparator,
// since spans below insertionThreshold were never routed through
// partitionThreeWay and so may still mix distinct string parts.
func insertionSort(lines []record.ParsedLine) {
	for i := 1; i < len(lines); i++ {
		v := lines[i]
		j := i - 1
		for j >= 0 && record.Compare(lines[j], v) > 0 {
			lines[j+1] = lines[j]
			j--
		}
		lines[j+1] = v
	}
}

// fallbackSort is the depth-guard escape hatch: a guaranteed-O(n log n)
// sort for the rare span that exhausts the recursion budget, trading
// quicksort's usual cache advantage for worst-case safety.
func fallbackSort(lines []record.ParsedLine) {
	sort.Slice(lines, func(i, j int) bool {
		return record.Compare(lines[i], lines[j]) < 0
	})
}
