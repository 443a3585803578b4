package treecrdt

import (
	"errors"
	"fmt"
)

// ErrCyclicMove is returned when a move would make a node its own
// transitive ancestor. It is the one error surfaced externally by the
// Forest API; the CRDT replica layer swallows it internally so a
// concurrent conflicting move cannot break convergence.
var ErrCyclicMove = errors.New("treecrdt: move would create a cycle")

// errMissingParent reports a parent id that is absent from the forest.
// This is a programmer contract violation: the replica layer is
// responsible for applying ops in ID order, which guarantees a New
// always precedes any reference to it.
func errMissingParent(parent ID) error {
	return fmt.Errorf("treecrdt: parent %s does not exist", parent)
}

func errUnknownNode(op string, id ID) error {
	return fmt.Errorf("treecrdt: %s of unknown node %s", op, id)
}

func errSelfReferentialParent(id ID) error {
	return fmt.Errorf("treecrdt: self-referential parent pointer at %s (loop detected)", id)
}

func errOutOfOrderPush(version any) error {
	return fmt.Errorf("treecrdt: snapshot pushed out of order at version %v", version)
}
