package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gridbase/gridbase/internal/cache"
	"github.com/gridbase/gridbase/internal/catalog"
	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/internal/filter"
	"github.com/gridbase/gridbase/internal/permissions"
	"github.com/gridbase/gridbase/internal/rowstore"
	"github.com/gridbase/gridbase/pkg/health"
	"github.com/gridbase/gridbase/pkg/logger"
)

// Catalog is the schema surface the engine needs.
type Catalog interface {
	GetTable(ctx context.Context, tenantID, tableID string) (*catalog.Table, error)
	ListTables(ctx context.Context, tenantID, databaseID string) ([]*catalog.Table, error)
	CreateTable(ctx context.Context, tenantID, databaseID, name string, defs []catalog.ColumnDefinition) (*catalog.Table, error)
	AddColumn(ctx context.Context, tenantID, tableID string, def catalog.ColumnDefinition) (*catalog.Column, error)
	UpdateColumn(ctx context.Context, tenantID, tableID, columnID string, newName *string, required *bool) (*catalog.Column, error)
	ReorderColumns(ctx context.Context, tenantID, tableID string, orderedIDs []string) error
	DeleteColumn(ctx context.Context, tenantID, tableID, columnID string) error
	DeleteTable(ctx context.Context, tenantID, tableID string) error
	RenameTable(ctx context.Context, tenantID, tableID, newName string) (*catalog.Table, error)
}

// Store is the row/cell surface the engine needs.
type Store interface {
	CreateRow(ctx context.Context, tenantID, tableID string, values rowstore.CellValues) (*filter.Row, error)
	GetRow(ctx context.Context, tenantID, tableID string, rowID int64, visible []coltype.ColumnSpec) (*filter.Row, error)
	UpsertCell(ctx context.Context, tenantID, tableID string, rowID int64, columnID string, value coltype.TypedValue) error
	DeleteRow(ctx context.Context, tenantID, tableID string, rowID int64) error
	ListRowIDs(ctx context.Context, tenantID, tableID string, limit, offset int) ([]int64, error)
	RowExists(ctx context.Context, tenantID, tableID string, rowID int64) (bool, error)
	ExecuteQuery(ctx context.Context, q *filter.Query, visible []coltype.ColumnSpec) ([]filter.Row, int, error)
}

// Permissions is the capability surface the engine needs.
type Permissions interface {
	CheckTable(ctx context.Context, p permissions.Principal, tableID string, cap permissions.Capability) (bool, error)
	CheckColumn(ctx context.Context, p permissions.Principal, tableID, columnID string, cap permissions.Capability) (bool, error)
	ReadableColumns(ctx context.Context, p permissions.Principal, tableID string, columnIDs []string) ([]string, error)
}

// Metrics is a snapshot of the engine's counters.
type Metrics struct {
	Requests    int64       `json:"requests"`
	Errors      int64       `json:"errors"`
	CacheHits   int64       `json:"cacheHits"`
	CacheMisses int64       `json:"cacheMisses"`
	Cache       cache.Stats `json:"cache"`
}

// Engine is the facade in front of the catalog, the permission scoper,
// the query builder, the result cache and the row store. Every read
// passes the scoper before the builder; every mutation passes it before
// the store is touched, and invalidates the table's cached results
// before returning.
type Engine struct {
	catalog  Catalog
	store    Store
	perms    Permissions
	cache    cache.Cache
	compiler *filter.Compiler
	logger   *logger.Logger

	requests    atomic.Int64
	errors      atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	running atomic.Bool
}

// New creates an engine over the given collaborators. A nil clock uses
// wall time for relative date filters.
func New(cat Catalog, store Store, perms Permissions, c cache.Cache, clock func() time.Time, log *logger.Logger) *Engine {
	return &Engine{
		catalog:  cat,
		store:    store,
		perms:    perms,
		cache:    c,
		compiler: filter.NewCompiler(clock),
		logger:   log,
	}
}

// Start marks the engine as serving.
func (e *Engine) Start() {
	e.running.Store(true)
	e.logger.Info("Engine started")
}

// Stop marks the engine as stopped and shuts the cache down.
func (e *Engine) Stop() {
	e.running.Store(false)
	e.cache.Shutdown()
	e.logger.Info("Engine stopped")
}

// Running reports whether Start has been called without a later Stop.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Metrics returns a snapshot of the engine counters.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		Requests:    e.requests.Load(),
		Errors:      e.errors.Load(),
		CacheHits:   e.cacheHits.Load(),
		CacheMisses: e.cacheMisses.Load(),
		Cache:       e.cache.Stats(),
	}
}

// RegisterHealthChecks adds the engine's checks to the checker. The
// functions are re-evaluated on every health request.
func (e *Engine) RegisterHealthChecks(ctx context.Context, checker *health.Checker) {
	checker.Register("engine", func() error {
		if !e.running.Load() {
			return errNotRunning
		}
		return nil
	})
	checker.Register("cache", func() error {
		return e.cache.Healthy(ctx)
	})
}

type engineError string

func (e engineError) Error() string { return string(e) }

const errNotRunning = engineError("engine is not running")

// countRequest tracks one operation and its outcome.
func (e *Engine) countRequest(err error) {
	e.requests.Add(1)
	if err != nil {
		e.errors.Add(1)
	}
}
