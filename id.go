package treecrdt

import "fmt"

// Client identifies a replica. Every replica in a system must use a
// unique Client value; IDs it allocates are guaranteed globally unique
// because (Lamport, Client) pairs only collide when both fields match.
type Client = uint64

// Lamport is a replica-local monotonic counter, bumped on every locally
// issued operation and raised past the greatest incoming Lamport value
// on merge.
type Lamport = uint32

// ID is a Lamport-style operation identifier. Ordering is lexicographic
// by (Lamport, Client); this total order is what lets every replica
// resolve conflicting concurrent operations identically.
type ID struct {
	Lamport Lamport
	Client  Client
}

// Less reports whether id sorts strictly before other.
func (id ID) Less(other ID) bool {
	if id.Lamport != other.Lamport {
		return id.Lamport < other.Lamport
	}
	return id.Client < other.Client
}

// Compare returns -1, 0, or 1 as id is less than, equal to, or greater
// than other, matching the conventions of sort.Slice/slices.SortFunc.
func (id ID) Compare(other ID) int {
	switch {
	case id.Lamport != other.Lamport:
		if id.Lamport < other.Lamport {
			return -1
		}
		return 1
	case id.Client != other.Client:
		if id.Client < other.Client {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (id ID) String() string {
	return fmt.Sprintf("(%d@%d)", id.Lamport, id.Client)
}

// OpKind discriminates the content of an Op.
type OpKind uint8

const (
	// OpNew creates a node whose identity is the op's own ID.
	OpNew OpKind = iota
	// OpMove reparents Op.Target under Op.Parent (nil Parent == root).
	OpMove
	// OpDelete marks Op.Target as deleted (a soft tombstone).
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpNew:
		return "New"
	case OpMove:
		return "Move"
	case OpDelete:
		return "Delete"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Op is an atomic, ID-stamped edit to the forest. Equality and ordering
// of operations derive solely from ID; Kind/Target/Parent describe the
// edit's effect, not its identity.
type Op struct {
	ID     ID
	Kind   OpKind
	Target ID  // meaningful for OpMove, OpDelete; ignored for OpNew
	Parent *ID // meaningful for OpNew, OpMove; nil denotes a root
}

// newNodeOp builds the Op a New{parent} creation issues: the node's
// identity is the op's own ID.
func newNodeOp(id ID, parent *ID) Op {
	return Op{ID: id, Kind: OpNew, Parent: parent}
}

func moveOp(id, target ID, parent *ID) Op {
	return Op{ID: id, Kind: OpMove, Target: target, Parent: parent}
}

func deleteOp(id, target ID) Op {
	return Op{ID: id, Kind: OpDelete, Target: target}
}

// targetID returns the node this op affects: its own ID for New, the
// explicit Target for Move/Delete.
func (o Op) targetID() ID {
	if o.Kind == OpNew {
		return o.ID
	}
	return o.Target
}
