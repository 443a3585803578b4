package treecrdt

// diffLogs computes the operations present in remote's per-client log
// that local has not yet recorded. For each client, only a length
// comparison is needed: a replica's own per-client log is only ever
// appended to, never reordered, so the first divergence point is always
// at the shorter log's length.
//
// The returned ops are in no particular cross-client order; callers sort
// by ID before using them as a rewind/replay batch.
func diffLogs(local, remote map[Client][]Op) []Op {
	var delta []Op
	for client, remoteOps := range remote {
		localLen := len(local[client])
		if len(remoteOps) > localLen {
			delta = append(delta, remoteOps[localLen:]...)
		}
	}
	return delta
}

// appendToLog records op as having been seen from client by appending it
// to log[client] in place.
func appendToLog(log map[Client][]Op, client Client, op Op) {
	log[client] = append(log[client], op)
}

// cloneOps returns a shallow copy of ops, used by Replica.Log so callers
// cannot mutate a replica's internal log through the returned slice.
func cloneOps(ops []Op) []Op {
	out := make([]Op, len(ops))
	copy(out, ops)
	return out
}
