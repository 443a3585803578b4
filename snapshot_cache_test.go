package treecrdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cmpInt(a, b int) int { return a - b }

func TestLogSpacedSnapshots_RetentionSchedule(t *testing.T) {
	cache := NewLogSpacedSnapshots[int, int](3, cmpInt)
	for i := 0; i < 10_000; i++ {
		cache.Push(i, i)
	}

	version, value, ok := cache.PopTillSnapshotLTE(9999)
	require.True(t, ok)
	require.Equal(t, 9999, version)
	require.Equal(t, 9999, value)

	version, value, ok = cache.PopTillSnapshotLTE(9998)
	require.True(t, ok)
	require.Equal(t, 9998, version)
	require.Equal(t, 9998, value)

	version, value, ok = cache.PopTillSnapshotLTE(6000)
	require.True(t, ok)
	require.Equal(t, 5119, version)
	require.Equal(t, 5119, value)

	_, _, ok = cache.PopTillSnapshotLTE(2000)
	require.False(t, ok)
}

func TestLogSpacedSnapshots_PushPanicsOutOfOrder(t *testing.T) {
	cache := NewLogSpacedSnapshots[int, int](1, cmpInt)
	cache.Push(5, 5)
	require.Panics(t, func() { cache.Push(5, 5) })
	require.Panics(t, func() { cache.Push(4, 4) })
}

func TestLogSpacedSnapshots_PopOnEmpty(t *testing.T) {
	cache := NewLogSpacedSnapshots[int, int](2, cmpInt)
	_, _, ok := cache.PopTillSnapshotLTE(0)
	require.False(t, ok)
}

func TestLogSpacedSnapshots_RetentionBound(t *testing.T) {
	const d = 2
	cache := NewLogSpacedSnapshots[int, int](d, cmpInt)
	const n = 5000
	for i := 0; i < n; i++ {
		cache.Push(i, i)
	}

	// C(d) here is generous: the algorithm guarantees O(2^d * log2 n)
	// retained entries, not a tight constant.
	maxExpected := (1 << d) * 32
	require.LessOrEqual(t, cache.CacheSize(), maxExpected)
}

func TestLogSpacedSnapshots_PopResumesConsistentSchedule(t *testing.T) {
	cache := NewLogSpacedSnapshots[int, int](2, cmpInt)
	for i := 0; i < 50; i++ {
		cache.Push(i, i*10)
	}
	version, value, ok := cache.PopTillSnapshotLTE(30)
	require.True(t, ok)
	require.LessOrEqual(t, version, 30)
	require.Equal(t, version*10, value)

	// Further pushes must resume from the truncated length without panicking.
	next := version + 1
	require.NotPanics(t, func() { cache.Push(next, next*10) })
}
