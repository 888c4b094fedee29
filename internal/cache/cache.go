package cache

import (
	"context"

	"github.com/gridbase/gridbase/internal/filter"
)

// Entry is one cached filter result: the hydrated page plus its
// pagination envelope.
type Entry struct {
	Rows       []filter.Row      `json:"rows"`
	Pagination filter.Pagination `json:"pagination"`
}

// Stats are the cumulative counters of a cache backend.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Evictions     int64 `json:"evictions"`
	Invalidations int64 `json:"invalidations"`
	Entries       int64 `json:"entries"`
}

// Cache stores filter results keyed by their canonical signature and
// grouped by table, so any write to a table can drop every result the
// write might have changed. A backend failure is reported as an error
// and treated by callers as a miss, never as a stale hit.
//
// Set takes the table generation the caller observed before computing
// its result. InvalidateTable advances the generation, so a result
// computed concurrently with a write can never be stored after the
// write's invalidation has run: the store is dropped instead.
type Cache interface {
	// Get returns the cached entry for the key, or ok=false on a miss.
	Get(ctx context.Context, tableID, key string) (entry *Entry, ok bool, err error)

	// Generation returns the table's current invalidation generation.
	// Callers read it before computing a result they intend to cache.
	Generation(ctx context.Context, tableID string) (int64, error)

	// Set stores an entry under the key and indexes it by table. The
	// store is silently dropped when the table's generation no longer
	// matches the one the caller observed.
	Set(ctx context.Context, tableID, key string, entry *Entry, generation int64) error

	// InvalidateTable drops every entry cached for the table.
	InvalidateTable(ctx context.Context, tableID string) error

	// Stats returns the backend's counters.
	Stats() Stats

	// Healthy reports whether the backend can serve requests.
	Healthy(ctx context.Context) error

	// Shutdown releases backend resources.
	Shutdown()
}
