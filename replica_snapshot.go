package treecrdt

import (
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"
)

// SnapshotReplica is the snapshot-variant CRDT replica (component E):
// it merges remote operations by restoring the nearest retained forest
// snapshot at or before the incoming batch's earliest operation, then
// replays the sorted union of operations from there.
//
// SnapshotReplica is not safe for concurrent use: ops are applied in a
// single-threaded loop and Merge mutates sortedOps/forest/cache in place.
type SnapshotReplica struct {
	client      Client
	nextLamport Lamport

	forest *PersistentForest
	cache  *LogSpacedSnapshots[ID, *PersistentForest]

	log        map[Client][]Op
	sortedOps  []Op
	appliedEnd int

	logger *zap.Logger
}

// NewSnapshotReplica returns an empty snapshot-variant replica identified
// by client.
func NewSnapshotReplica(client Client, opts ...Option) *SnapshotReplica {
	cfg := newReplicaConfig(opts)
	cache := NewLogSpacedSnapshots[ID, *PersistentForest](cfg.snapshotDensity, ID.Compare)
	cache.setLogger(cfg.logger)
	return &SnapshotReplica{
		client: client,
		forest: NewPersistentForest(),
		cache:  cache,
		log:    make(map[Client][]Op),
		logger: cfg.logger,
	}
}

// ClientID returns the replica's identity.
func (r *SnapshotReplica) ClientID() Client { return r.client }

func (r *SnapshotReplica) newID() ID {
	id := ID{Lamport: r.nextLamport, Client: r.client}
	r.nextLamport++
	return id
}

func (r *SnapshotReplica) pushOp(op Op) {
	appendToLog(r.log, r.client, op)
	r.sortedOps = append(r.sortedOps, op)
}

// NewNode allocates a fresh ID, records a New op, applies pending ops,
// and returns the new ID.
func (r *SnapshotReplica) NewNode(parent *ID) ID {
	id := r.newID()
	r.pushOp(newNodeOp(id, parent))
	r.applyPendingOps()
	return id
}

// Move records a Move op reparenting target under parent and applies
// pending ops. A cyclic move is recorded in the log (so future merges
// see it) but has no effect on the forest.
func (r *SnapshotReplica) Move(target ID, parent *ID) {
	id := r.newID()
	r.pushOp(moveOp(id, target, parent))
	r.applyPendingOps()
}

// Delete records a Delete op for target and applies pending ops.
func (r *SnapshotReplica) Delete(target ID) {
	id := r.newID()
	r.pushOp(deleteOp(id, target))
	r.applyPendingOps()
}

// applyPendingOps advances the applied cursor over the unapplied tail of
// sortedOps, mutating forest and pushing a snapshot after each op.
func (r *SnapshotReplica) applyPendingOps() {
	for i := r.appliedEnd; i < len(r.sortedOps); i++ {
		op := r.sortedOps[i]
		switch op.Kind {
		case OpNew:
			nf, err := r.forest.Mov(op.ID, op.Parent)
			r.forest = nf
			r.logSwallowedCycle(err, op, op.ID)
		case OpMove:
			nf, err := r.forest.Mov(op.Target, op.Parent)
			r.forest = nf
			r.logSwallowedCycle(err, op, op.Target)
		case OpDelete:
			r.forest = r.forest.Delete(op.Target)
		default:
			panic(fmt.Sprintf("treecrdt: unknown op kind %v", op.Kind))
		}
		r.cache.Push(op.ID, r.forest)
	}
	r.appliedEnd = len(r.sortedOps)
}

func (r *SnapshotReplica) logSwallowedCycle(err error, op Op, target ID) {
	if err == nil {
		return
	}
	r.logger.Debug("swallowed cyclic move",
		zap.Stringer("op_id", op.ID),
		zap.Stringer("target", target),
	)
}

// Merge incorporates every operation other has observed that this
// replica has not yet seen, rewinding to the nearest snapshot at or
// before the earliest incoming op and replaying forward. other must be
// a *SnapshotReplica; Merge panics otherwise.
func (r *SnapshotReplica) Merge(other Replica) {
	o, ok := other.(*SnapshotReplica)
	if !ok {
		panic(fmt.Sprintf("treecrdt: SnapshotReplica.Merge called with incompatible variant %T", other))
	}

	var ans []Op
	for client, ops := range o.log {
		localLen := len(r.log[client])
		if len(ops) <= localLen {
			continue
		}
		for _, op := range ops[localLen:] {
			appendToLog(r.log, client, op)
			ans = append(ans, op)
			if op.ID.Lamport >= r.nextLamport {
				r.nextLamport = op.ID.Lamport + 1
			}
		}
	}
	if len(ans) == 0 {
		return
	}

	sortOpsByID(ans)
	startID := ans[0].ID

	if version, snapshot, ok := r.cache.PopTillSnapshotLTE(startID); ok {
		last := sort.Search(len(r.sortedOps), func(i int) bool {
			return !r.sortedOps[i].ID.Less(version)
		})
		if last >= len(r.sortedOps) || r.sortedOps[last].ID != version {
			panic(fmt.Sprintf("treecrdt: snapshot version %s not found in sorted ops", version))
		}

		tail := append([]Op(nil), r.sortedOps[last+1:]...)
		ans = append(ans, tail...)
		r.sortedOps = r.sortedOps[:last+1]
		r.forest = snapshot
		r.appliedEnd = len(r.sortedOps)

		sortOpsByID(ans)
		r.sortedOps = append(r.sortedOps, ans...)

		r.logger.Debug("merge rewound via snapshot",
			zap.Stringer("start_id", startID),
			zap.String("strategy", "snapshot"),
			zap.Int("replayed_ops", len(ans)),
		)
	} else {
		ans = append(ans, r.sortedOps...)
		sortOpsByID(ans)
		r.sortedOps = ans
		r.appliedEnd = 0
		r.forest = NewPersistentForest()

		r.logger.Debug("merge rewound to empty forest (no snapshot before start)",
			zap.Stringer("start_id", startID),
			zap.String("strategy", "snapshot"),
			zap.Int("replayed_ops", len(ans)),
		)
	}

	r.applyPendingOps()
}

// Forest returns the replica's current observable tree state.
func (r *SnapshotReplica) Forest() Forester { return r.forest }

// Log returns a copy of the ops recorded as originating from client.
func (r *SnapshotReplica) Log(client Client) []Op {
	return cloneOps(r.log[client])
}

func sortOpsByID(ops []Op) {
	slices.SortFunc(ops, func(a, b Op) int { return a.ID.Compare(b.ID) })
}
