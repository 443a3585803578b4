package treecrdt

import "go.uber.org/zap"

// defaultSnapshotDensity is the d parameter handed to LogSpacedSnapshots
// when a SnapshotReplica is constructed without WithSnapshotDensity.
const defaultSnapshotDensity = 2

// replicaConfig collects the options shared by both replica variants.
// The undo variant ignores snapshotDensity since it carries no cache.
type replicaConfig struct {
	logger             *zap.Logger
	snapshotDensity    uint
	snapshotDensitySet bool
}

func newReplicaConfig(opts []Option) replicaConfig {
	cfg := replicaConfig{logger: zap.NewNop(), snapshotDensity: defaultSnapshotDensity}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a SnapshotReplica or UndoReplica at construction
// time. Options unused by a given variant are accepted and ignored so
// callers (tests, in particular) can share one option slice across both.
type Option func(*replicaConfig)

// WithLogger injects a structured logger used for debug-level tracing of
// swallowed cyclic moves, merge rewind decisions, and snapshot evictions.
// The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(cfg *replicaConfig) {
		if log != nil {
			cfg.logger = log
		}
	}
}

// WithSnapshotDensity sets the `d` parameter forwarded to
// NewLogSpacedSnapshots for a SnapshotReplica. It is a no-op on
// UndoReplica, which keeps no snapshot cache.
func WithSnapshotDensity(d uint) Option {
	return func(cfg *replicaConfig) {
		cfg.snapshotDensity = d
		cfg.snapshotDensitySet = true
	}
}
