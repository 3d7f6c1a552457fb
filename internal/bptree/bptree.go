// Package bptree is the B+ tree engine: insert-or-update, point lookup,
// split propagation (leaf and internal), root promotion, parent
// reparenting of migrated children, and the whole-tree correctness check.
//
// The engine is node-store-mediated: every node it touches is Load-ed from
// and Store-d/Release-d back to an *nodestore.Store. It never caches a
// handle across a public call — the lifetime of a loaded node is scoped to
// the function that acquired it.
package bptree

import (
	"errors"
	"fmt"

	"github.com/ericherman/c4db/internal/bnode"
	"github.com/ericherman/c4db/internal/bsearch"
	"github.com/ericherman/c4db/internal/diag"
	"github.com/ericherman/c4db/internal/nodestore"
)

// Outcome distinguishes a genuine insert from an overwrite of an existing
// key.
type Outcome int

const (
	Inserted Outcome = iota
	Updated
)

// ErrCorrupt is returned when a bsearch.Error or a malformed internal node
// is encountered mid-descent — a structural failure, not a normal miss.
var ErrCorrupt = errors.New("bptree: structural corruption detected")

// Get performs a point lookup, descending from root to a leaf and reading
// the RowIndex stored there. found is false (with a zero RowIndex) when
// the key was never inserted.
func Get(ns *nodestore.Store, root bnode.ID, key uint64) (row bnode.RowIndex, found bool, err error) {
	id := root
	for {
		node, err := ns.Load(id)
		if err != nil {
			return 0, false, err
		}

		outcome, i := bsearch.Search(node.Keys[:node.NumKeys], key)
		if node.IsLeaf {
			if outcome == bsearch.Found {
				row = node.RowAt(i)
				found = true
			}
			if rerr := ns.Release(node); rerr != nil {
				return 0, false, rerr
			}
			return row, found, nil
		}

		var next bnode.ID
		switch outcome {
		case bsearch.Found:
			next = node.ChildID(i + 1)
		case bsearch.Insert:
			next = node.ChildID(i)
		default:
			ns.Release(node)
			return 0, false, ErrCorrupt
		}
		if rerr := ns.Release(node); rerr != nil {
			return 0, false, rerr
		}
		id = next
	}
}

// Put inserts or updates (key -> row) starting the descent at root.
// Callers must follow a successful Put with RediscoverRoot: a split of the
// root during this call replaces it, and the header's cached root id is
// only made consistent by that walk.
func Put(ns *nodestore.Store, root bnode.ID, key uint64, row bnode.RowIndex, counters *diag.Counters) (Outcome, error) {
	return putRec(ns, root, key, row, counters)
}

func putRec(ns *nodestore.Store, id bnode.ID, key uint64, row bnode.RowIndex, counters *diag.Counters) (Outcome, error) {
	node, err := ns.Load(id)
	if err != nil {
		return 0, err
	}

	outcome, i := bsearch.Search(node.Keys[:node.NumKeys], key)

	if node.IsLeaf {
		switch outcome {
		case bsearch.Found:
			node.SetRowAt(i, row)
			counters.KeyUpdates++
			if err := ns.Store(node); err != nil {
				ns.Release(node)
				return 0, err
			}
			return Updated, ns.Release(node)

		case bsearch.Insert:
			insertLeafAt(node, i, key, row)
			counters.KeyInserts++
			if node.NumKeys == bnode.Order {
				if err := splitLeaf(ns, node, counters); err != nil {
					ns.Release(node)
					return 0, err
				}
			} else if err := ns.Store(node); err != nil {
				ns.Release(node)
				return 0, err
			}
			return Inserted, ns.Release(node)

		default:
			ns.Release(node)
			return 0, ErrCorrupt
		}
	}

	// Internal node: a key found here means it already lives in the
	// subtree rooted at children[i+1]. This reports Updated WITHOUT
	// descending to overwrite the leaf's stored row index — the new row
	// is silently discarded. Callers that need the row index refreshed
	// on every Put must not rely on a found key at an internal node
	// actually touching the leaf.
	switch outcome {
	case bsearch.Found:
		if err := ns.Release(node); err != nil {
			return 0, err
		}
		return Updated, nil
	case bsearch.Insert:
		child := node.ChildID(i)
		if err := ns.Release(node); err != nil {
			return 0, err
		}
		return putRec(ns, child, key, row, counters)
	default:
		ns.Release(node)
		return 0, ErrCorrupt
	}
}

// insertLeafAt shifts keys/children right from position k and writes the
// new entry in its place.
func insertLeafAt(node *bnode.Node, k int, key uint64, row bnode.RowIndex) {
	for j := node.NumKeys; j > k; j-- {
		node.Keys[j] = node.Keys[j-1]
		node.Children[j] = node.Children[j-1]
	}
	node.Keys[k] = key
	node.SetRowAt(k, row)
	node.NumKeys++
}

// splitLeaf splits a leaf holding exactly bnode.Order keys. node is
// mutated in place to become the left half; the caller still owns and
// releases its handle.
func splitLeaf(ns *nodestore.Store, node *bnode.Node, counters *diag.Counters) error {
	siblingID := ns.Allocate()
	sibling := bnode.NewLeaf(siblingID)
	sibling.ParentID = node.ParentID

	copyCount := node.NumKeys - bnode.SplitKeyIndex
	for j := 0; j < copyCount; j++ {
		sibling.Keys[j] = node.Keys[bnode.SplitKeyIndex+j]
		sibling.Children[j] = node.Children[bnode.SplitKeyIndex+j]
	}
	sibling.NumKeys = copyCount
	node.NumKeys = bnode.SplitKeyIndex
	upKey := sibling.Keys[0] // retained in the sibling leaf; leaves store values
	counters.Splits++

	return finishSplit(ns, node, sibling, upKey, counters)
}

// splitInternal splits an internal node holding exactly bnode.Order keys,
// reparenting every migrated child.
func splitInternal(ns *nodestore.Store, node *bnode.Node, counters *diag.Counters) error {
	siblingID := ns.Allocate()
	sibling := bnode.NewInternal(siblingID)
	sibling.ParentID = node.ParentID

	keyCopyCount := node.NumKeys - bnode.SplitNodeIndex // ORDER/2 keys
	for j := 0; j < keyCopyCount; j++ {
		sibling.Keys[j] = node.Keys[bnode.SplitNodeIndex+j]
	}
	childCopyCount := keyCopyCount + 1 // ORDER/2 + 1 children
	for j := 0; j < childCopyCount; j++ {
		sibling.Children[j] = node.Children[bnode.SplitNodeIndex+j]
	}
	sibling.NumKeys = keyCopyCount

	leftNumKeys := node.NumKeys - bnode.SplitNodeIndex - 1
	upKey := node.Keys[leftNumKeys] // the one key neither kept nor copied
	node.NumKeys = leftNumKeys
	counters.Splits++

	for j := 0; j < childCopyCount; j++ {
		childID := sibling.ChildID(j)
		child, err := ns.Load(childID)
		if err != nil {
			return err
		}
		child.ParentID = sibling.ID
		if err := ns.Store(child); err != nil {
			ns.Release(child)
			return err
		}
		if err := ns.Release(child); err != nil {
			return err
		}
	}

	return finishSplit(ns, node, sibling, upKey, counters)
}

// finishSplit persists the split halves and either promotes a new root
// (if node was the root) or inserts (upKey, sibling) into node's parent.
// Both halves are stored before any recursive parent insert, so a crash
// mid-insert never leaves an allocated sibling unreferenced by its parent
// for longer than necessary.
func finishSplit(ns *nodestore.Store, node, sibling *bnode.Node, upKey uint64, counters *diag.Counters) error {
	if node.ParentID == bnode.NoID {
		if err := promoteNewRoot(ns, node, sibling, upKey); err != nil {
			ns.Release(sibling)
			return err
		}
		return ns.Release(sibling)
	}

	if err := ns.Store(node); err != nil {
		ns.Release(sibling)
		return err
	}
	if err := ns.Store(sibling); err != nil {
		ns.Release(sibling)
		return err
	}
	parentID := node.ParentID
	siblingID := sibling.ID
	if err := ns.Release(sibling); err != nil {
		return err
	}
	return insertIntoParent(ns, parentID, upKey, siblingID, counters)
}

// promoteNewRoot allocates a new root over left and sibling: persist the
// new root, update the header's root pointer, then persist both children
// with their new parent id.
func promoteNewRoot(ns *nodestore.Store, left, sibling *bnode.Node, upKey uint64) error {
	newRootID := ns.Allocate()
	newRoot := bnode.NewInternal(newRootID)
	newRoot.NumKeys = 1
	newRoot.Keys[0] = upKey
	newRoot.SetChildID(0, left.ID)
	newRoot.SetChildID(1, sibling.ID)

	left.ParentID = newRootID
	sibling.ParentID = newRootID

	if err := ns.Store(newRoot); err != nil {
		return err
	}
	ns.SetRootNodeID(newRootID)
	if err := ns.HeaderWrite(); err != nil {
		return err
	}
	if err := ns.Store(left); err != nil {
		return err
	}
	if err := ns.Store(sibling); err != nil {
		return err
	}
	return ns.Release(newRoot)
}

// insertIntoParent inserts (upKey, newChild) into parent, splitting it
// again if it overflows. The already-split left node keeps its original
// slot in parent's children; only the key and the new right child are
// new, hence the key shift starting at k and the child shift starting at
// k+1.
func insertIntoParent(ns *nodestore.Store, parentID bnode.ID, upKey uint64, newChild bnode.ID, counters *diag.Counters) error {
	parent, err := ns.Load(parentID)
	if err != nil {
		return err
	}

	k := 0
	for k < parent.NumKeys && parent.Keys[k] < upKey {
		k++
	}

	m := parent.NumKeys
	for j := m; j > k; j-- {
		parent.Keys[j] = parent.Keys[j-1]
	}
	for j := m; j > k; j-- {
		parent.Children[j+1] = parent.Children[j]
	}
	parent.Keys[k] = upKey
	parent.SetChildID(k+1, newChild)
	parent.NumKeys = m + 1

	if parent.NumKeys == bnode.Order {
		if err := splitInternal(ns, parent, counters); err != nil {
			ns.Release(parent)
			return err
		}
		return ns.Release(parent)
	}
	if err := ns.Store(parent); err != nil {
		ns.Release(parent)
		return err
	}
	return ns.Release(parent)
}

// RediscoverRoot walks parent ids upward from the header's cached root
// until it finds the node with parent_id == 0, and writes that id back as
// the header's root_node_id. A split of the root during the preceding Put
// already updates the header directly, but this walk is the authoritative
// recovery path regardless — it is cheap and never wrong.
func RediscoverRoot(ns *nodestore.Store) (bnode.ID, error) {
	id := ns.Header().RootNodeID
	for {
		node, err := ns.Load(id)
		if err != nil {
			return 0, err
		}
		parent := node.ParentID
		if err := ns.Release(node); err != nil {
			return 0, err
		}
		if parent == bnode.NoID {
			ns.SetRootNodeID(id)
			return id, nil
		}
		id = parent
	}
}

// Check runs the whole-tree correctness audit: for every internal key
// index i, max_key(children[i]) < keys[i], and
// max_key(children[num_keys]) >= keys[num_keys-1]; every leaf's keys are
// strictly ascending.
func Check(ns *nodestore.Store, root bnode.ID) error {
	_, err := checkSubtree(ns, root)
	return err
}

func checkSubtree(ns *nodestore.Store, id bnode.ID) (maxKey uint64, err error) {
	node, err := ns.Load(id)
	if err != nil {
		return 0, err
	}

	if node.IsLeaf {
		for i := 1; i < node.NumKeys; i++ {
			if node.Keys[i-1] >= node.Keys[i] {
				ns.Release(node)
				return 0, fmt.Errorf("bptree: leaf %d keys not strictly ascending at index %d", id, i)
			}
		}
		var max uint64
		if node.NumKeys > 0 {
			max = node.Keys[node.NumKeys-1]
		}
		if err := ns.Release(node); err != nil {
			return 0, err
		}
		return max, nil
	}

	var childMax [bnode.Order + 1]uint64
	for i := 0; i <= node.NumKeys; i++ {
		m, err := checkSubtree(ns, node.ChildID(i))
		if err != nil {
			return 0, err
		}
		childMax[i] = m
	}

	for i := 0; i < node.NumKeys; i++ {
		if childMax[i] >= node.Keys[i] {
			ns.Release(node)
			return 0, fmt.Errorf("bptree: node %d: max_key(children[%d])=%d >= keys[%d]=%d", id, i, childMax[i], i, node.Keys[i])
		}
	}
	if node.NumKeys > 0 && childMax[node.NumKeys] < node.Keys[node.NumKeys-1] {
		ns.Release(node)
		return 0, fmt.Errorf("bptree: node %d: max_key(children[%d])=%d < keys[%d]=%d", id, node.NumKeys, childMax[node.NumKeys], node.NumKeys-1, node.Keys[node.NumKeys-1])
	}

	max := childMax[node.NumKeys]
	if err := ns.Release(node); err != nil {
		return 0, err
	}
	return max, nil
}
