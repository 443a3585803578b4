package treecrdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSnapshotReplica_ScenarioOne has two replicas independently move
// nodes into divergent subtrees, then bidirectionally merge, and asserts
// they converge to the same forest.
func TestSnapshotReplica_ScenarioOne(t *testing.T) {
	a := NewSnapshotReplica(1)
	b := NewSnapshotReplica(2)

	ids := make([]ID, 10)
	for i := range ids {
		ids[i] = a.NewNode(nil)
	}
	a.Move(ids[0], &ids[2])

	b.Merge(a)
	b.Move(ids[3], &ids[1])

	a.Merge(b)

	require.True(t, forestersEqual(a.Forest(), b.Forest()))
}

// TestSnapshotReplica_ScenarioTwo deletes a node and then concurrently
// self-moves it on both replicas (a cyclic move, swallowed on both
// sides), and asserts the two replicas still converge after a
// bidirectional merge.
func TestSnapshotReplica_ScenarioTwo(t *testing.T) {
	a := NewSnapshotReplica(1)
	b := NewSnapshotReplica(2)

	var ids []ID
	for i := 0; i < 10; i++ {
		ids = append(ids, a.NewNode(nil))
	}
	b.Merge(a)

	a.Delete(ids[0])
	a.Move(ids[0], &ids[0]) // cyclic self-move, swallowed

	b.Move(ids[1], &ids[1]) // cyclic self-move, swallowed

	b.Merge(a)
	a.Merge(b)

	require.True(t, forestersEqual(a.Forest(), b.Forest()))
}

func TestSnapshotReplica_NewNodeAppendsLog(t *testing.T) {
	r := NewSnapshotReplica(1)
	id := r.NewNode(nil)
	log := r.Log(1)
	require.Len(t, log, 1)
	require.Equal(t, id, log[0].ID)
	require.Equal(t, OpNew, log[0].Kind)
}

func TestSnapshotReplica_MoveRejectsCycleButLogsIt(t *testing.T) {
	r := NewSnapshotReplica(1)
	a := r.NewNode(nil)
	b := r.NewNode(&a)

	r.Move(a, &b) // a -> child of its own descendant: cyclic, swallowed

	parent, _, ok := r.Forest().Get(a)
	require.True(t, ok)
	require.Nil(t, parent, "cyclic move must not mutate the forest")

	log := r.Log(1)
	require.Len(t, log, 3, "the swallowed move is still recorded in the log")
}

func TestSnapshotReplica_MergePanicsOnIncompatibleVariant(t *testing.T) {
	a := NewSnapshotReplica(1)
	b := NewUndoReplica(2)
	require.Panics(t, func() { a.Merge(b) })
}

func TestSnapshotReplica_MergeIsIdempotent(t *testing.T) {
	a := NewSnapshotReplica(1)
	b := NewSnapshotReplica(2)
	a.NewNode(nil)

	b.Merge(a)
	before := b.Forest().Len()
	b.Merge(a)
	require.Equal(t, before, b.Forest().Len())
}
