package treecrdt

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// undoEntry pairs a recorded op with the parent its target had
// immediately before the op was applied (Move ops only; zero value for
// New/Delete).
type undoEntry struct {
	op        Op
	oldParent *ID
}

// UndoReplica is the undo-variant CRDT replica (component F): it merges
// remote operations by reverse-applying the tail of sortedOps back to
// the incoming batch's earliest operation (using each move's recorded
// prior parent) and replaying the sorted union forward. It keeps no
// snapshot cache and uses the plain mutable Forest directly.
//
// UndoReplica is not safe for concurrent use: ops are applied in a
// single-threaded loop and Merge mutates sortedOps/forest in place.
type UndoReplica struct {
	client      Client
	nextLamport Lamport

	forest *Forest

	log        map[Client][]Op
	sortedOps  []undoEntry
	appliedEnd int

	logger *zap.Logger
}

// NewUndoReplica returns an empty undo-variant replica identified by
// client. WithSnapshotDensity is accepted and ignored: UndoReplica keeps
// no snapshot cache.
func NewUndoReplica(client Client, opts ...Option) *UndoReplica {
	cfg := newReplicaConfig(opts)
	return &UndoReplica{
		client: client,
		forest: NewForest(),
		log:    make(map[Client][]Op),
		logger: cfg.logger,
	}
}

// ClientID returns the replica's identity.
func (r *UndoReplica) ClientID() Client { return r.client }

func (r *UndoReplica) newID() ID {
	id := ID{Lamport: r.nextLamport, Client: r.client}
	r.nextLamport++
	return id
}

func (r *UndoReplica) pushOp(op Op) {
	appendToLog(r.log, r.client, op)
	r.sortedOps = append(r.sortedOps, undoEntry{op: op})
}

// NewNode allocates a fresh ID, records a New op, applies pending ops,
// and returns the new ID.
func (r *UndoReplica) NewNode(parent *ID) ID {
	id := r.newID()
	r.pushOp(newNodeOp(id, parent))
	r.applyPendingOps()
	return id
}

// Move records a Move op reparenting target under parent and applies
// pending ops.
func (r *UndoReplica) Move(target ID, parent *ID) {
	id := r.newID()
	r.pushOp(moveOp(id, target, parent))
	r.applyPendingOps()
}

// Delete records a Delete op for target and applies pending ops.
func (r *UndoReplica) Delete(target ID) {
	id := r.newID()
	r.pushOp(deleteOp(id, target))
	r.applyPendingOps()
}

// applyPendingOps advances the applied cursor over the unapplied tail of
// sortedOps. For each Move it first captures the target's current
// parent into oldParent — the value revertUntil will restore it to if
// this op is ever rewound by a future merge.
func (r *UndoReplica) applyPendingOps() {
	for i := r.appliedEnd; i < len(r.sortedOps); i++ {
		entry := &r.sortedOps[i]
		switch entry.op.Kind {
		case OpNew:
			if err := r.forest.Mov(entry.op.ID, entry.op.Parent); err != nil {
				r.logSwallowedCycle(entry.op, entry.op.ID)
			}
		case OpMove:
			if parent, _, ok := r.forest.Get(entry.op.Target); ok {
				entry.oldParent = parent
			}
			if err := r.forest.Mov(entry.op.Target, entry.op.Parent); err != nil {
				r.logSwallowedCycle(entry.op, entry.op.Target)
			}
		case OpDelete:
			r.forest.Delete(entry.op.Target)
		default:
			panic(fmt.Sprintf("treecrdt: unknown op kind %v", entry.op.Kind))
		}
	}
	r.appliedEnd = len(r.sortedOps)
}

func (r *UndoReplica) logSwallowedCycle(op Op, target ID) {
	r.logger.Debug("swallowed cyclic move",
		zap.Stringer("op_id", op.ID),
		zap.Stringer("target", target),
	)
}

// revertUntil trims sortedOps down to everything with ID < id (id must
// not already be present — a merge's start_id is always an id the
// receiver has never seen), reverse-applying each trimmed op's inverse
// to the forest, and returns the raw ops that were trimmed.
//
// New is never undone here: revertUntil only rewinds ops with ID >= id,
// and id is always >= the lowest incoming ID. Any New a rewound op
// depends on either predates id (and survives the rewind) or is itself
// part of the incoming batch (and gets replayed before its dependents,
// since (lamport, client) ordering guarantees a node's New has a
// strictly smaller ID than anything that references it).
func (r *UndoReplica) revertUntil(id ID) []Op {
	trimStart := sort.Search(len(r.sortedOps), func(i int) bool {
		return !r.sortedOps[i].op.ID.Less(id)
	})
	if trimStart < len(r.sortedOps) && r.sortedOps[trimStart].op.ID == id {
		panic(fmt.Sprintf("treecrdt: revertUntil called with an id already present: %s", id))
	}

	removed := append([]undoEntry(nil), r.sortedOps[trimStart:]...)
	r.sortedOps = r.sortedOps[:trimStart]

	for i := len(removed) - 1; i >= 0; i-- {
		entry := removed[i]
		switch entry.op.Kind {
		case OpNew:
			// no-op: New is never undone, see doc comment above.
		case OpMove:
			if err := r.forest.Mov(entry.op.Target, entry.oldParent); err != nil {
				r.logSwallowedCycle(entry.op, entry.op.Target)
			}
		case OpDelete:
			r.forest.UndoDelete(entry.op.Target)
		}
	}

	r.appliedEnd = len(r.sortedOps)

	ops := make([]Op, len(removed))
	for i, entry := range removed {
		ops[i] = entry.op
	}
	return ops
}

// Merge incorporates every operation other has observed that this
// replica has not yet seen, reverting the tail of sortedOps back to the
// earliest incoming op and replaying the sorted union forward. other
// must be a *UndoReplica; Merge panics otherwise.
func (r *UndoReplica) Merge(other Replica) {
	o, ok := other.(*UndoReplica)
	if !ok {
		panic(fmt.Sprintf("treecrdt: UndoReplica.Merge called with incompatible variant %T", other))
	}

	var incoming []Op
	for client, ops := range o.log {
		localLen := len(r.log[client])
		if len(ops) <= localLen {
			continue
		}
		for _, op := range ops[localLen:] {
			appendToLog(r.log, client, op)
			incoming = append(incoming, op)
			if op.ID.Lamport >= r.nextLamport {
				r.nextLamport = op.ID.Lamport + 1
			}
		}
	}
	if len(incoming) == 0 {
		return
	}

	startID := incoming[0].ID
	for _, op := range incoming[1:] {
		if op.ID.Less(startID) {
			startID = op.ID
		}
	}

	popped := r.revertUntil(startID)
	merged := append(incoming, popped...)
	sortOpsByID(merged)

	r.logger.Debug("merge reverted via undo",
		zap.Stringer("start_id", startID),
		zap.String("strategy", "undo"),
		zap.Int("replayed_ops", len(merged)),
	)

	for _, op := range merged {
		r.sortedOps = append(r.sortedOps, undoEntry{op: op})
	}
	r.applyPendingOps()
}

// Forest returns the replica's current observable tree state.
func (r *UndoReplica) Forest() Forester { return r.forest }

// Log returns a copy of the ops recorded as originating from client.
func (r *UndoReplica) Log(client Client) []Op {
	return cloneOps(r.log[client])
}
