package treecrdt

import (
	"sort"

	"github.com/google/btree"
	"go.uber.org/zap"
)

// cacheEntry is the ordered-by-position payload stored in the sparse
// btree backing LogSpacedSnapshots. Keying by position (not by K
// directly) keeps the retention math in push/pop a pure function of
// "how many pushes have happened so far".
type cacheEntry[V any] struct {
	pos   int
	value V
}

// LogSpacedSnapshots is a cache of (version, value) entries pushed in
// strictly increasing version order, retaining only ~2^d * log2(n)
// entries out of n pushes. See https://madebyevan.com/algos/log-spaced-snapshots/
// for the algorithm this implements.
//
// The sparse position -> value map is backed by github.com/google/btree
// rather than a plain Go map, because pop_till_snapshot_lte needs "the
// greatest surviving position below a cutoff" in O(log n), which a plain
// map cannot provide without a linear scan.
type LogSpacedSnapshots[K any, V any] struct {
	keys  []K
	cache *btree.BTreeG[cacheEntry[V]]
	d     uint
	cmp   func(a, b K) int
	log   *zap.Logger
}

// NewLogSpacedSnapshots returns an empty cache with retention density d.
// Larger d retains more snapshots (trading memory for shallower rewinds).
func NewLogSpacedSnapshots[K any, V any](d uint, cmp func(a, b K) int) *LogSpacedSnapshots[K, V] {
	return &LogSpacedSnapshots[K, V]{
		cache: btree.NewG[cacheEntry[V]](32, func(a, b cacheEntry[V]) bool { return a.pos < b.pos }),
		d:     d,
		cmp:   cmp,
		log:   zap.NewNop(),
	}
}

func (c *LogSpacedSnapshots[K, V]) setLogger(log *zap.Logger) {
	if log != nil {
		c.log = log
	}
}

// lowestZeroBit returns the lowest power of two not set in n, i.e.
// (n+1) &^ n.
func lowestZeroBit(n int) int {
	return (n + 1) &^ n
}

// Push appends a new (version, value) entry. version must be strictly
// greater than every version pushed so far; Push panics otherwise, since
// an out-of-order push is a programmer contract violation.
func (c *LogSpacedSnapshots[K, V]) Push(version K, value V) {
	if len(c.keys) > 0 && c.cmp(version, c.keys[len(c.keys)-1]) <= 0 {
		panic(errOutOfOrderPush(version))
	}

	pos := len(c.keys)
	delta := lowestZeroBit(pos) << c.d
	if pos >= delta {
		evict := pos - delta
		if _, ok := c.cache.Delete(cacheEntry[V]{pos: evict}); ok {
			c.log.Debug("log_spaced_snapshots: evicted", zap.Int("evicted_position", evict))
		}
	}
	c.cache.ReplaceOrInsert(cacheEntry[V]{pos: pos, value: value})
	c.keys = append(c.keys, version)
}

// PopTillSnapshotLTE trims the cache so that only snapshots with
// version <= k remain, and returns the one with the greatest such
// version, or ok=false if none remain. Subsequent pushes resume from
// the new (shorter) length of keys; the retention math stays consistent
// because it is purely a function of position.
func (c *LogSpacedSnapshots[K, V]) PopTillSnapshotLTE(k K) (version K, value V, ok bool) {
	firstToRemove := sort.Search(len(c.keys), func(i int) bool {
		return c.cmp(c.keys[i], k) > 0
	})

	var toDelete []cacheEntry[V]
	c.cache.AscendGreaterOrEqual(cacheEntry[V]{pos: firstToRemove}, func(item cacheEntry[V]) bool {
		toDelete = append(toDelete, item)
		return true
	})
	for _, item := range toDelete {
		c.cache.Delete(item)
	}

	maxItem, hasMax := c.cache.Max()
	if !hasMax {
		c.keys = nil
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}

	c.keys = c.keys[:maxItem.pos+1]
	return c.keys[maxItem.pos], maxItem.value, true
}

// CacheSize returns the number of snapshots currently retained.
func (c *LogSpacedSnapshots[K, V]) CacheSize() int {
	return c.cache.Len()
}
