// Package treecrdt implements a movable-tree CRDT: a mutable tree/forest
// data structure that supports concurrent, distributed, offline-tolerant
// reparenting, deletion, and undo-deletion, and converges deterministically
// across replicas that exchange operation logs in any order.
//
// The central difficulty this package solves is that reparenting interacts
// badly with concurrency: naively applying concurrent moves can create
// cycles, and naively rebuilding the tree on every merge does not scale.
// Two replica variants are provided, trading memory for time on merge:
//
//   - SnapshotReplica keeps a sparse, log-spaced cache of past forest
//     snapshots (backed by a persistent map so snapshots share memory) and
//     rewinds to the latest snapshot at or before an incoming merge's
//     earliest operation.
//   - UndoReplica stores each move's prior parent inline with the
//     operation and rewinds by replaying the affected suffix in reverse.
//
// Both variants expose the same external contract (see Replica) and are
// guaranteed to converge to bitwise-equal forests given the same set of
// operations, regardless of merge order.
package treecrdt
