package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/filter"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func newTestMemory(t *testing.T, cfg MemoryConfig) *Memory {
	t.Helper()
	// Keep the sweeper idle so tests control expiry via the clock.
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
	m := NewMemory(cfg, nil)
	t.Cleanup(m.Shutdown)
	return m
}

func entryWithRows(n int) *Entry {
	rows := make([]filter.Row, n)
	for i := range rows {
		rows[i] = filter.Row{ID: int64(i + 1), Cells: map[string]interface{}{}}
	}
	return &Entry{Rows: rows, Pagination: filter.BuildPagination(1, 25, n)}
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, MemoryConfig{})

	_, ok, err := m.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(3), 0))

	entry, ok, err := m.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, entry.Rows, 3)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestMemory(t, MemoryConfig{TTL: 45 * time.Second, Clock: clock.Now})

	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(1), 0))

	clock.Advance(44 * time.Second)
	_, ok, _ := m.Get(ctx, "t1", "k1")
	assert.True(t, ok, "entry inside its TTL must hit")

	clock.Advance(2 * time.Second)
	_, ok, _ = m.Get(ctx, "t1", "k1")
	assert.False(t, ok, "entry past its TTL must miss")

	// The expired entry is gone, not just hidden.
	assert.Equal(t, int64(0), m.Stats().Entries)
}

func TestMemoryInvalidateTable(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, MemoryConfig{})

	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(1), 0))
	require.NoError(t, m.Set(ctx, "t1", "k2", entryWithRows(2), 0))
	require.NoError(t, m.Set(ctx, "t2", "k1", entryWithRows(3), 0))

	require.NoError(t, m.InvalidateTable(ctx, "t1"))

	_, ok, _ := m.Get(ctx, "t1", "k1")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "t1", "k2")
	assert.False(t, ok)

	// Other tables keep their entries.
	entry, ok, _ := m.Get(ctx, "t2", "k1")
	require.True(t, ok)
	assert.Len(t, entry.Rows, 3)

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.Invalidations)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestMemoryStaleGenerationIsDropped(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, MemoryConfig{})

	gen, err := m.Generation(ctx, "t1")
	require.NoError(t, err)

	// A write invalidates the table while the result is still being
	// computed against the pre-write data.
	require.NoError(t, m.InvalidateTable(ctx, "t1"))

	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(2), gen))
	_, ok, _ := m.Get(ctx, "t1", "k1")
	assert.False(t, ok, "a result computed before an invalidation must not land after it")

	gen, err = m.Generation(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(3), gen))
	entry, ok, _ := m.Get(ctx, "t1", "k1")
	require.True(t, ok)
	assert.Len(t, entry.Rows, 3)
}

func TestMemoryInvalidateEmptyTableAdvancesGeneration(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, MemoryConfig{})

	before, err := m.Generation(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, m.InvalidateTable(ctx, "t1"))
	after, err := m.Generation(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestMemoryInvalidateUnknownTable(t *testing.T) {
	m := newTestMemory(t, MemoryConfig{})
	assert.NoError(t, m.InvalidateTable(context.Background(), "nope"))
}

func TestMemoryCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestMemory(t, MemoryConfig{Capacity: 3, Clock: clock.Now})

	for i := 1; i <= 3; i++ {
		require.NoError(t, m.Set(ctx, "t1", fmt.Sprintf("k%d", i), entryWithRows(i), 0))
		clock.Advance(time.Second)
	}

	require.NoError(t, m.Set(ctx, "t1", "k4", entryWithRows(4), 0))

	_, ok, _ := m.Get(ctx, "t1", "k1")
	assert.False(t, ok, "oldest entry must be evicted")
	_, ok, _ = m.Get(ctx, "t1", "k2")
	assert.True(t, ok)
	_, ok, _ = m.Get(ctx, "t1", "k4")
	assert.True(t, ok)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(3), stats.Entries)
}

func TestMemoryOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, MemoryConfig{Capacity: 1})

	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(1), 0))
	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(2), 0))

	entry, ok, _ := m.Get(ctx, "t1", "k1")
	require.True(t, ok)
	assert.Len(t, entry.Rows, 2)
	assert.Equal(t, int64(0), m.Stats().Evictions)
}

func TestMemorySweeperRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestMemory(t, MemoryConfig{
		TTL:           time.Second,
		SweepInterval: 5 * time.Millisecond,
		Clock:         clock.Now,
	})

	require.NoError(t, m.Set(ctx, "t1", "k1", entryWithRows(1), 0))
	clock.Advance(2 * time.Second)

	assert.Eventually(t, func() bool {
		return m.Stats().Entries == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryHealthy(t *testing.T) {
	m := newTestMemory(t, MemoryConfig{})
	assert.NoError(t, m.Healthy(context.Background()))
}
