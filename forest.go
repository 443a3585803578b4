package treecrdt

// forestNode is a single entry in a Forest's ID -> node map.
type forestNode struct {
	parent  *ID
	deleted bool
}

// Forest is a mutable tree/forest keyed by ID. It maintains, at all
// times, that the parent-pointer graph is acyclic and that every
// non-nil parent exists as a key in the map.
//
// Forest is not safe for concurrent use; per the package's concurrency
// model, all mutation happens inside a single replica's single-threaded
// apply loop.
type Forest struct {
	nodes map[ID]forestNode
}

// NewForest returns an empty mutable forest.
func NewForest() *Forest {
	return &Forest{nodes: make(map[ID]forestNode)}
}

// Mov moves node into parent. A nil parent makes node a root. If node is
// not yet present, it is created. If node already exists and parent
// would make node its own transitive ancestor, Mov leaves the forest
// unchanged and returns ErrCyclicMove.
//
// Mov panics if parent is non-nil and does not already exist in the
// forest — this is a programmer contract violation; callers (the replica
// layer) are responsible for applying ops in ID order so a node's New
// always precedes any reference to it.
func (f *Forest) Mov(node ID, parent *ID) error {
	if parent == nil {
		existing, ok := f.nodes[node]
		deleted := ok && existing.deleted
		f.nodes[node] = forestNode{parent: nil, deleted: deleted}
		return nil
	}

	if _, ok := f.nodes[*parent]; !ok {
		panic(errMissingParent(*parent))
	}

	if existing, ok := f.nodes[node]; ok {
		if f.isAncestorOf(node, *parent) {
			return ErrCyclicMove
		}
		existing.parent = parent
		f.nodes[node] = existing
		return nil
	}

	f.nodes[node] = forestNode{parent: parent, deleted: false}
	return nil
}

// isAncestorOf reports whether maybeAncestor equals nodeID or lies on
// nodeID's parent chain. A self-pointing parent pointer is a programmer
// error and panics (loop detection).
func (f *Forest) isAncestorOf(maybeAncestor, nodeID ID) bool {
	if maybeAncestor == nodeID {
		return true
	}
	current := nodeID
	for {
		node, ok := f.nodes[current]
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

// Delete marks node as deleted. node must already exist; Delete panics
// otherwise.
func (f *Forest) Delete(node ID) {
	existing, ok := f.nodes[node]
	if !ok {
		panic(errUnknownNode("delete", node))
	}
	existing.deleted = true
	f.nodes[node] = existing
}

// UndoDelete clears node's deleted flag. node must already exist;
// UndoDelete panics otherwise.
func (f *Forest) UndoDelete(node ID) {
	existing, ok := f.nodes[node]
	if !ok {
		panic(errUnknownNode("undo-delete", node))
	}
	existing.deleted = false
	f.nodes[node] = existing
}

// Get returns node's current parent and deleted flag. ok is false if
// node has never been created.
func (f *Forest) Get(id ID) (parent *ID, deleted bool, ok bool) {
	node, present := f.nodes[id]
	if !present {
		return nil, false, false
	}
	return node.parent, node.deleted, true
}

// Len returns the number of nodes ever created in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Roots returns every node currently parented at nil. Order is
// unspecified. This is a read-side convenience computed by an O(n) scan,
// not a maintained index: a structurally-shared root set would add
// bookkeeping to every Mov for a query nothing in the hot path needs.
func (f *Forest) Roots() []ID {
	var roots []ID
	for id, node := range f.nodes {
		if node.parent == nil {
			roots = append(roots, id)
		}
	}
	return roots
}

// Equal reports whether f and other contain exactly the same node ->
// (parent, deleted) mapping.
func (f *Forest) Equal(other *Forest) bool {
	if len(f.nodes) != len(other.nodes) {
		return false
	}
	for id, node := range f.nodes {
		otherNode, ok := other.nodes[id]
		if !ok || !sameNode(node, otherNode) {
			return false
		}
	}
	return true
}

func sameNode(a, b forestNode) bool {
	if a.deleted != b.deleted {
		return false
	}
	if (a.parent == nil) != (b.parent == nil) {
		return false
	}
	return a.parent == nil || *a.parent == *b.parent
}

// allIDs returns every node ID ever created, used by cross-variant
// equivalence checks that need to enumerate a Forester generically.
func (f *Forest) allIDs() []ID {
	ids := make([]ID, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}
	return ids
}
