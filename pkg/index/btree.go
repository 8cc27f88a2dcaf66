package index

import (
	"bytes"
	"fmt"
	"sync"
)

// DefaultBTreeOrder is the default maximum key count per node (spec §6).
const DefaultBTreeOrder = 128

// compareKeys orders keys by unsigned lexicographic byte comparison
// with length as a tiebreaker, matching the C source's memcmp-then-
// length-compare policy.
func compareKeys(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if c := bytes.Compare(a[:n], b[:n]); c != 0 {
		return c
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// btreeNode is a classic (not B+) B-tree node: leaf nodes carry
// values, internal nodes carry children, per the tagged-variant shape
// original_source/storage/indexes/btree.cpp expresses as a C union.
type btreeNode struct {
	isLeaf   bool
	keys     [][]byte
	values   []uint64 // leaf only
	children []*btreeNode
}

// BTree is an in-memory, volatile B-tree keyed by byte strings,
// mapping each key to a uint64 value (spec §4.6). Index structures
// are rebuilt from WAL/pages at startup by a higher layer; nothing
// here persists to disk.
type BTree struct {
	mu     sync.RWMutex
	root   *btreeNode
	order  int
	size   int
	height int
}

// NewBTree creates a B-tree of the given order, defaulting to
// DefaultBTreeOrder when order <= 0.
func NewBTree(order int) *BTree {
	if order <= 0 {
		order = DefaultBTreeOrder
	}
	return &BTree{
		root:   &btreeNode{isLeaf: true},
		order:  order,
		height: 1,
	}
}

// Insert upserts key to value: an existing key's value is overwritten
// rather than rejected (spec §4.6's stated duplicate-key policy). The
// root is split preemptively when full, before descending, mirroring
// split_child's "split before recursing into a full child" strategy.
func (bt *BTree) Insert(key []byte, value uint64) error {
	if len(key) == 0 {
		return ErrInvalidArgument
	}

	bt.mu.Lock()
	defer bt.mu.Unlock()

	if len(bt.root.keys) == bt.order {
		newRoot := &btreeNode{isLeaf: false, children: []*btreeNode{bt.root}}
		bt.splitChild(newRoot, 0)
		bt.root = newRoot
		bt.height++
	}
	if bt.insertNonFull(bt.root, key, value) {
		bt.size++
	}
	return nil
}

// splitChild splits the full child at parent.children[index] in two
// and installs a separator key in parent at index.
//
// Internal nodes split the classic-B-tree way: the middle key moves
// up into parent and is removed from both halves, since an internal
// node carries no value for it to orphan.
//
// Leaf nodes split the B+-tree way instead: parent gets a COPY of the
// first key going to the new right sibling, and that key's value
// stays put in the sibling. The C source this is ported from moves
// leaf keys up exactly like internal ones, which silently drops the
// promoted key's value (internal nodes have no values array to catch
// it) — copy-up avoids that data loss and stays consistent with
// Search's existing equal-key-descends-right routing, since the
// separator equals the right child's lowest key either way.
func (bt *BTree) splitChild(parent *btreeNode, index int) {
	full := parent.children[index]
	mid := bt.order / 2
	sibling := &btreeNode{isLeaf: full.isLeaf}

	var promoted []byte
	if full.isLeaf {
		sibling.keys = append(sibling.keys, full.keys[mid:]...)
		sibling.values = append(sibling.values, full.values[mid:]...)
		full.keys = full.keys[:mid]
		full.values = full.values[:mid]
		promoted = sibling.keys[0]
	} else {
		sibling.keys = append(sibling.keys, full.keys[mid+1:]...)
		sibling.children = append(sibling.children, full.children[mid+1:]...)
		promoted = full.keys[mid]
		full.keys = full.keys[:mid]
		full.children = full.children[:mid+1]
	}

	parent.children = append(parent.children, nil)
	copy(parent.children[index+2:], parent.children[index+1:])
	parent.children[index+1] = sibling

	parent.keys = append(parent.keys, nil)
	copy(parent.keys[index+1:], parent.keys[index:])
	parent.keys[index] = promoted
}

// insertNonFull inserts into a node known not to be full, splitting a
// full child before descending into it. It reports whether key was
// new (false when an existing key's value was overwritten).
func (bt *BTree) insertNonFull(node *btreeNode, key []byte, value uint64) bool {
	i := len(node.keys) - 1

	if node.isLeaf {
		for i >= 0 && compareKeys(key, node.keys[i]) < 0 {
			i--
		}
		if i >= 0 && compareKeys(key, node.keys[i]) == 0 {
			node.values[i] = value
			return false
		}
		node.keys = append(node.keys, nil)
		node.values = append(node.values, 0)
		copy(node.keys[i+2:], node.keys[i+1:])
		copy(node.values[i+2:], node.values[i+1:])
		node.keys[i+1] = key
		node.values[i+1] = value
		return true
	}

	for i >= 0 && compareKeys(key, node.keys[i]) < 0 {
		i--
	}
	i++

	if len(node.children[i].keys) == bt.order {
		bt.splitChild(node, i)
		// An equal key routes right too: it matches the copy-up
		// separator installed by splitChild, whose real value lives
		// in the new right sibling (see splitChild's leaf case).
		if compareKeys(key, node.keys[i]) >= 0 {
			i++
		}
	}
	return bt.insertNonFull(node.children[i], key, value)
}

// Search returns the value for key and whether it was found. On an
// exact match at an internal node the search descends right (to
// children[i+1]), per the original source's equal-keys-descend-right
// policy: a key equal to a separator always lives in the right
// subtree (splitChild copies or moves it up from there), so
// descending left at that point would miss it.
func (bt *BTree) Search(key []byte) (uint64, bool) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	node := bt.root
	for node != nil {
		i := 0
		for i < len(node.keys) && compareKeys(key, node.keys[i]) > 0 {
			i++
		}
		if i < len(node.keys) && compareKeys(key, node.keys[i]) == 0 {
			if node.isLeaf {
				return node.values[i], true
			}
			node = node.children[i+1]
			continue
		}
		if node.isLeaf {
			return 0, false
		}
		node = node.children[i]
	}
	return 0, false
}

// Delete drops key's entry from its leaf so Search can no longer find
// it (the Open Question left open by the C source's no-op delete,
// resolved here as upsert-only indexing: no node merging or
// rebalancing follows the removal, so the tree's shape is otherwise
// untouched). Returns ErrKeyNotFound if key is absent.
func (bt *BTree) Delete(key []byte) error {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	node := bt.root
	for node != nil {
		i := 0
		for i < len(node.keys) && compareKeys(key, node.keys[i]) > 0 {
			i++
		}
		if i < len(node.keys) && compareKeys(key, node.keys[i]) == 0 {
			if node.isLeaf {
				node.keys = append(node.keys[:i], node.keys[i+1:]...)
				node.values = append(node.values[:i], node.values[i+1:]...)
				bt.size--
				return nil
			}
			node = node.children[i+1]
			continue
		}
		if node.isLeaf {
			return fmt.Errorf("btree: %x: %w", key, ErrKeyNotFound)
		}
		node = node.children[i]
	}
	return fmt.Errorf("btree: %x: %w", key, ErrKeyNotFound)
}

// Size returns the number of live keys inserted minus those deleted.
func (bt *BTree) Size() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.size
}

// Height returns the tree's current height in levels.
func (bt *BTree) Height() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.height
}

// RangeScan calls visit for every key in [start, end) in ascending
// order, stopping early if visit returns false.
func (bt *BTree) RangeScan(start, end []byte, visit func(key []byte, value uint64) bool) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	bt.rangeScan(bt.root, start, end, visit)
}

func (bt *BTree) rangeScan(node *btreeNode, start, end []byte, visit func(key []byte, value uint64) bool) bool {
	if node == nil {
		return true
	}
	if node.isLeaf {
		for i, k := range node.keys {
			if start != nil && compareKeys(k, start) < 0 {
				continue
			}
			if end != nil && compareKeys(k, end) >= 0 {
				return true
			}
			if !visit(k, node.values[i]) {
				return false
			}
		}
		return true
	}
	// Separator keys carry no value of their own (every value lives in
	// a leaf); visiting children in order is enough to cover the range.
	for _, child := range node.children {
		if !bt.rangeScan(child, start, end, visit) {
			return false
		}
	}
	return true
}
