package treecrdt

import "github.com/benbjohnson/immutable"

// idHasher implements immutable.Hasher[ID] with an allocation-free
// FNV-1a mix of Lamport and Client, avoiding the reflection-based
// default hasher immutable falls back to for non-primitive key types.
type idHasher struct{}

func (idHasher) Hash(id ID) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	h = (h ^ id.Lamport) * prime32
	h = (h ^ uint32(id.Client)) * prime32
	h = (h ^ uint32(id.Client>>32)) * prime32
	return h
}

func (idHasher) Equal(a, b ID) bool {
	return a == b
}

// PersistentForest is the persistent counterpart to Forest: the same
// Mov/Delete/Get semantics, except that Mov and Delete return a new
// forest instead of mutating in place, and there is no UndoDelete. It is
// backed by an immutable hash-array-mapped trie
// (github.com/benbjohnson/immutable) so Clone is O(1) and a value and
// its mutated derivative share memory. This is what makes the
// snapshot-variant replica's per-op snapshotting affordable.
type PersistentForest struct {
	nodes *immutable.Map[ID, forestNode]
}

// NewPersistentForest returns an empty persistent forest.
func NewPersistentForest() *PersistentForest {
	return &PersistentForest{nodes: immutable.NewMap[ID, forestNode](idHasher{})}
}

// Clone returns f itself: PersistentForest is immutable, so a "clone"
// is just sharing the existing root pointer. Every mutating method
// below returns a new *PersistentForest instead of mutating in place.
func (f *PersistentForest) Clone() *PersistentForest {
	return f
}

// Mov returns a new forest with node moved into parent, sharing
// structure with f wherever the edit doesn't touch it. Semantics match
// Forest.Mov exactly, including the panic on a missing non-nil parent
// and the ErrCyclicMove/unchanged-state behavior on a cyclic move.
func (f *PersistentForest) Mov(node ID, parent *ID) (*PersistentForest, error) {
	if parent == nil {
		deleted := false
		if existing, ok := f.nodes.Get(node); ok {
			deleted = existing.deleted
		}
		return &PersistentForest{nodes: f.nodes.Set(node, forestNode{parent: nil, deleted: deleted})}, nil
	}

	if _, ok := f.nodes.Get(*parent); !ok {
		panic(errMissingParent(*parent))
	}

	if existing, ok := f.nodes.Get(node); ok {
		if f.isAncestorOf(node, *parent) {
			return f, ErrCyclicMove
		}
		existing.parent = parent
		return &PersistentForest{nodes: f.nodes.Set(node, existing)}, nil
	}

	return &PersistentForest{nodes: f.nodes.Set(node, forestNode{parent: parent, deleted: false})}, nil
}

func (f *PersistentForest) isAncestorOf(maybeAncestor, nodeID ID) bool {
	if maybeAncestor == nodeID {
		return true
	}
	current := nodeID
	for {
		node, ok := f.nodes.Get(current)
		if !ok {
			panic(errUnknownNode("ancestor walk", current))
		}
		if node.parent == nil {
			return false
		}
		if *node.parent == maybeAncestor {
			return true
		}
		if *node.parent == current {
			panic(errSelfReferentialParent(current))
		}
		current = *node.parent
	}
}

// Delete returns a new forest with node marked deleted. node must
// already exist; Delete panics otherwise.
func (f *PersistentForest) Delete(node ID) *PersistentForest {
	existing, ok := f.nodes.Get(node)
	if !ok {
		panic(errUnknownNode("delete", node))
	}
	existing.deleted = true
	return &PersistentForest{nodes: f.nodes.Set(node, existing)}
}

// Get returns node's current parent and deleted flag. ok is false if
// node has never been created.
func (f *PersistentForest) Get(id ID) (parent *ID, deleted bool, ok bool) {
	node, present := f.nodes.Get(id)
	if !present {
		return nil, false, false
	}
	return node.parent, node.deleted, true
}

// Len returns the number of nodes ever created in the forest.
func (f *PersistentForest) Len() int {
	return f.nodes.Len()
}

// Roots returns every node currently parented at nil. See Forest.Roots
// for why this is a scan rather than a maintained persistent set.
func (f *PersistentForest) Roots() []ID {
	var roots []ID
	itr := f.nodes.Iterator()
	for !itr.Done() {
		id, node, _ := itr.Next()
		if node.parent == nil {
			roots = append(roots, id)
		}
	}
	return roots
}

// Equal reports whether f and other contain exactly the same node ->
// (parent, deleted) mapping.
func (f *PersistentForest) Equal(other *PersistentForest) bool {
	if f.nodes.Len() != other.nodes.Len() {
		return false
	}
	itr := f.nodes.Iterator()
	for !itr.Done() {
		id, node, _ := itr.Next()
		otherNode, ok := other.nodes.Get(id)
		if !ok || !sameNode(node, otherNode) {
			return false
		}
	}
	return true
}

func (f *PersistentForest) allIDs() []ID {
	ids := make([]ID, 0, f.nodes.Len())
	itr := f.nodes.Iterator()
	for !itr.Done() {
		id, _, _ := itr.Next()
		ids = append(ids, id)
	}
	return ids
}
