package treecrdt

// Forester is the read contract shared by Forest and PersistentForest,
// letting generic harnesses (property tests, cross-variant equivalence
// checks) inspect either backing representation without caring which
// one produced a given Replica's state.
type Forester interface {
	Get(id ID) (parent *ID, deleted bool, ok bool)
	Len() int
	allIDs() []ID
}

// Replica is the contract both the snapshot and undo CRDT variants
// satisfy: a single Merge contract every convergent replica type
// implements, so fuzz-style property tests can drive either variant
// through the same harness.
type Replica interface {
	// ClientID returns the replica's identity.
	ClientID() Client

	// NewNode allocates a fresh ID, records a New op, applies pending
	// ops, and returns the new ID.
	NewNode(parent *ID) ID

	// Move records a Move op reparenting target and applies pending ops.
	Move(target ID, parent *ID)

	// Delete records a Delete op for target and applies pending ops.
	Delete(target ID)

	// Merge incorporates every operation other has observed that this
	// replica has not yet seen. other must be the same concrete variant
	// as the receiver; Merge panics otherwise.
	Merge(other Replica)

	// Forest returns the replica's current observable tree state.
	Forest() Forester

	// Log returns a copy of the ops this replica has recorded as
	// originating from client. Exposed so tests (and the property-test
	// harness) can assert on per-client log contents.
	Log(client Client) []Op
}

// unionIDs returns the set union of every ID known to a and b, used by
// cross-variant equivalence checks to enumerate what to compare via Get.
func unionIDs(a, b Forester) []ID {
	seen := make(map[ID]struct{}, a.Len()+b.Len())
	var ids []ID
	for _, id := range a.allIDs() {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range b.allIDs() {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// forestersEqual compares two Forester values structurally via Get,
// independent of their concrete backing representation. This is what
// lets TestConvergence_CrossVariantEquivalence compare a SnapshotReplica's
// *PersistentForest against an UndoReplica's *Forest.
func forestersEqual(a, b Forester) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, id := range unionIDs(a, b) {
		pa, da, oka := a.Get(id)
		pb, db, okb := b.Get(id)
		if oka != okb {
			return false
		}
		if !oka {
			continue
		}
		if da != db {
			return false
		}
		if (pa == nil) != (pb == nil) {
			return false
		}
		if pa != nil && *pa != *pb {
			return false
		}
	}
	return true
}
