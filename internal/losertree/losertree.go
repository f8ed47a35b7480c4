// Package losertree implements a fixed-capacity tournament tree for
// k-way minimum extraction, used by the merge phase in place of a
// binary heap: each replacement walks a fixed leaf-to-root path of
// length ceil(log2 k) rather than a variable sift-down, which keeps
// comparisons down and plays nicer with branch prediction in the
// merge hot loop.
package losertree

// Tree is a fixed-capacity k-leaf tournament over values of type T.
// Internally the k leaves are padded up to the next power of two so
// that every leaf's root path has a fixed, precomputable parent
// chain; the padding leaves are permanent phantoms that always lose.
type Tree[T any] struct {
	less func(a, b T) bool

	k    int
	size int // next power of two >= max(k, 1)

	values []T    // values[0:k], current value per real leaf
	active []bool // active[0:k]

	// node[p] for 1 <= p < size holds the leaf index (or -1 for a
	// phantom) that lost the match at internal node p. node[1]'s
	// winner is the tree's root winner.
	node    []int
	root    int // leaf index of the current overall winner, or -1 if empty
	nActive int
}

// New creates an empty tree with capacity k.
func New[T any](k int, less func(a, b T) bool) *Tree[T] {
	size := 1
	for size < k {
		size *= 2
	}
	return &Tree[T]{
		less:   less,
		k:      k,
		size:   size,
		values: make([]T, k),
		active: make([]bool, k),
		node:   make([]int, size),
		root:   -1,
	}
}

// SetLeaf marks leaf i active with value v. Call once per active
// source before Build.
func (t *Tree[T]) SetLeaf(i int, v T) {
	t.values[i] = v
	if !t.active[i] {
		t.active[i] = true
		t.nActive++
	}
}

// Len reports the number of currently active leaves.
func (t *Tree[T]) Len() int {
	return t.nActive
}

// beats reports whether leaf a wins when matched against leaf b. A
// leaf index of -1 denotes a phantom padding leaf, which always
// loses. Ties favor a, which is an arbitrary but consistent choice:
// no stability guarantee is made beyond the total order.
func (t *Tree[T]) beats(a, b int) bool {
	if a == -1 {
		return false
	}
	if b == -1 {
		return true
	}
	if !t.active[a] {
		return false
	}
	if !t.active[b] {
		return true
	}
	return !t.less(t.values[b], t.values[a])
}

// Build runs the initial O(size) pairwise tournament from the leaves
// up. Must be called once after all SetLeaf calls and before any
// WinnerIndex/ReplaceWinner/DeactivateWinner call.
func (t *Tree[T]) Build() {
	if t.k == 0 {
		t.root = -1
		return
	}

	// cur[p] holds the current winner bubbling up into virtual
	// position p, for leaves (p in [size, 2*size)) and internal
	// matches (p in [1, size)).
	cur := make([]int, 2*t.size)
	for i := 0; i < t.size; i++ {
		pos := t.size + i
		if i < t.k {
			cur[pos] = i
		} else {
			cur[pos] = -1 // phantom padding leaf
		}
	}

	for p := t.size - 1; p >= 1; p-- {
		l, r := cur[2*p], cur[2*p+1]
		if t.beats(l, r) {
			cur[p] = l
			t.node[p] = r
		} else {
			cur[p] = r
			t.node[p] = l
		}
	}

	if t.nActive == 0 {
		t.root = -1
	} else {
		t.root = cur[1]
	}
}

// WinnerIndex returns the leaf index of the current overall minimum,
// or -1 if the tree is empty.
func (t *Tree[T]) WinnerIndex() int {
	return t.root
}

// WinnerValue returns the current value of the overall minimum.
// Callers must check Len() > 0 first.
func (t *Tree[T]) WinnerValue() T {
	return t.values[t.root]
}

// ReplaceWinner substitutes the winner leaf's value with v, then
// re-runs the tournament along the leaf-to-root path touched by that
// leaf: at each ancestor, the carried value is compared against the
// node's stored loser, the larger of the two becomes (or remains) the
// new stored loser, and the smaller continues upward. Total:
// ceil(log2 size) comparisons.
func (t *Tree[T]) ReplaceWinner(v T) {
	leaf := t.root
	t.values[leaf] = v
	t.propagate(leaf)
}

// DeactivateWinner marks the winner leaf inactive (its source is
// exhausted) and re-runs the tournament along the same path.
func (t *Tree[T]) DeactivateWinner() {
	leaf := t.root
	t.active[leaf] = false
	t.nActive--
	t.propagate(leaf)
}

// propagate walks leaf's parent chain to the root, updating the
// stored loser at each internal node and carrying the winner upward.
func (t *Tree[T]) propagate(leaf int) {
	carried := leaf
	for p := (t.size + leaf) / 2; p >= 1; p /= 2 {
		other := t.node[p]
		if t.beats(carried, other) {
			// carried remains the winner; other stays the stored loser.
			continue
		}
		t.node[p] = carried
		carried = other
	}
	if t.nActive == 0 {
		t.root = -1
	} else {
		t.root = carried
	}
}
