package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridbase/gridbase/pkg/logger"
)

// Defaults for the in-process backend.
const (
	DefaultTTL           = 45 * time.Second
	DefaultCapacity      = 1024
	DefaultSweepInterval = 15 * time.Second
)

// MemoryConfig tunes the in-process cache. Zero values fall back to the
// defaults; a nil clock uses time.Now.
type MemoryConfig struct {
	TTL           time.Duration
	Capacity      int
	SweepInterval time.Duration
	Clock         func() time.Time
}

type memoryItem struct {
	entry   *Entry
	tableID string
	stored  time.Time
	expires time.Time
}

// Memory is an in-process Cache with a fixed capacity and TTL. Expired
// entries are dropped lazily on read and periodically by a sweeper.
type Memory struct {
	mu      sync.Mutex
	items   map[string]*memoryItem
	byTable map[string]map[string]struct{}
	gens    map[string]int64

	ttl      time.Duration
	capacity int
	clock    func() time.Time
	logger   *logger.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64

	stop chan struct{}
	done chan struct{}
}

// NewMemory creates and starts an in-process cache. Shutdown stops the
// background sweeper.
func NewMemory(cfg MemoryConfig, log *logger.Logger) *Memory {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &Memory{
		items:    make(map[string]*memoryItem),
		byTable:  make(map[string]map[string]struct{}),
		gens:     make(map[string]int64),
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		clock:    cfg.Clock,
		logger:   log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go m.sweep(cfg.SweepInterval)

	return m
}

func (m *Memory) Get(_ context.Context, tableID, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[m.itemKey(tableID, key)]
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	if !m.clock().Before(item.expires) {
		m.removeLocked(tableID, key)
		m.misses.Add(1)
		return nil, false, nil
	}

	m.hits.Add(1)
	return item.entry, true, nil
}

func (m *Memory) Generation(_ context.Context, tableID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[tableID], nil
}

func (m *Memory) Set(_ context.Context, tableID, key string, entry *Entry, generation int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The table was invalidated after the caller read its generation,
	// so this result may predate a completed write. Drop it.
	if m.gens[tableID] != generation {
		return nil
	}

	now := m.clock()
	full := m.itemKey(tableID, key)

	if _, exists := m.items[full]; !exists && len(m.items) >= m.capacity {
		m.evictOldestLocked()
	}

	m.items[full] = &memoryItem{
		entry:   entry,
		tableID: tableID,
		stored:  now,
		expires: now.Add(m.ttl),
	}
	keys, ok := m.byTable[tableID]
	if !ok {
		keys = make(map[string]struct{})
		m.byTable[tableID] = keys
	}
	keys[key] = struct{}{}

	return nil
}

func (m *Memory) InvalidateTable(_ context.Context, tableID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gens[tableID]++

	keys := m.byTable[tableID]
	for key := range keys {
		delete(m.items, m.itemKey(tableID, key))
		m.invalidations.Add(1)
	}
	delete(m.byTable, tableID)

	if m.logger != nil && len(keys) > 0 {
		m.logger.Debugf("Invalidated %d cached results for table %s", len(keys), tableID)
	}

	return nil
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	entries := int64(len(m.items))
	m.mu.Unlock()

	return Stats{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Evictions:     m.evictions.Load(),
		Invalidations: m.invalidations.Load(),
		Entries:       entries,
	}
}

func (m *Memory) Healthy(context.Context) error {
	return nil
}

func (m *Memory) Shutdown() {
	close(m.stop)
	<-m.done
}

func (m *Memory) itemKey(tableID, key string) string {
	return tableID + "/" + key
}

// removeLocked drops one entry and its table index record.
func (m *Memory) removeLocked(tableID, key string) {
	delete(m.items, m.itemKey(tableID, key))
	if keys, ok := m.byTable[tableID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.byTable, tableID)
		}
	}
}

// evictOldestLocked makes room by dropping the entry stored longest ago.
func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldest *memoryItem
	for key, item := range m.items {
		if oldest == nil || item.stored.Before(oldest.stored) {
			oldestKey = key
			oldest = item
		}
	}
	if oldest == nil {
		return
	}

	delete(m.items, oldestKey)
	if keys, ok := m.byTable[oldest.tableID]; ok {
		for key := range keys {
			if m.itemKey(oldest.tableID, key) == oldestKey {
				delete(keys, key)
				break
			}
		}
		if len(keys) == 0 {
			delete(m.byTable, oldest.tableID)
		}
	}
	m.evictions.Add(1)
}

func (m *Memory) sweep(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.clock()
			for key, item := range m.items {
				if !now.Before(item.expires) {
					m.removeLocked(item.tableID, keyOf(key, item.tableID))
				}
			}
			m.mu.Unlock()
		}
	}
}

// keyOf strips the table prefix added by itemKey.
func keyOf(full, tableID string) string {
	return full[len(tableID)+1:]
}
