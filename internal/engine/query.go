package engine

import (
	"context"
	"time"

	"github.com/gridbase/gridbase/internal/cache"
	"github.com/gridbase/gridbase/internal/catalog"
	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/internal/filter"
	"github.com/gridbase/gridbase/internal/permissions"
	"github.com/gridbase/gridbase/pkg/apperror"
)

// FilteredRowsResponse is the result of a filtered query.
type FilteredRowsResponse struct {
	Rows            []filter.Row          `json:"rows"`
	Pagination      filter.Pagination     `json:"pagination"`
	AppliedFilters  []filter.FilterConfig `json:"appliedFilters"`
	ExecutionTimeMs int64                 `json:"executionTimeMs"`
	CacheHit        bool                  `json:"cacheHit"`
}

// BuildFilteredQuery validates, compiles and executes a filter request.
// The principal's column visibility bounds everything: filters, global
// search and sorting only see columns the principal may read, and the
// returned cells never contain anything else. Results are served from
// the table's cache when a prior identical request populated it; cache
// backend failures degrade to a miss.
func (e *Engine) BuildFilteredQuery(ctx context.Context, p permissions.Principal, tableID string, payload filter.Payload) (resp *FilteredRowsResponse, err error) {
	defer func() { e.countRequest(err) }()
	start := time.Now()

	table, visible, err := e.visibleColumns(ctx, p, tableID)
	if err != nil {
		return nil, err
	}

	payload.Clamp()

	visibleIDs := make([]string, len(visible))
	for i, col := range visible {
		visibleIDs[i] = col.ID
	}
	key := filter.Signature(table.ID, payload, visibleIDs)

	if entry, ok, cErr := e.cache.Get(ctx, table.ID, key); cErr != nil {
		e.logger.Warnf("Cache read failed, treating as miss: %v", cErr)
	} else if ok {
		e.cacheHits.Add(1)
		return &FilteredRowsResponse{
			Rows:            entry.Rows,
			Pagination:      entry.Pagination,
			AppliedFilters:  payload.Filters,
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			CacheHit:        true,
		}, nil
	}
	e.cacheMisses.Add(1)

	// Read the table's invalidation generation before touching the
	// store. A write that completes while this query runs advances it,
	// and Set then drops the result instead of caching stale data.
	generation, genErr := e.cache.Generation(ctx, table.ID)
	if genErr != nil {
		e.logger.Warnf("Cache generation read failed, result will not be cached: %v", genErr)
	}

	query, _, err := e.compiler.Compile(p.TenantID, table.ID, visible, payload)
	if err != nil {
		return nil, err
	}

	rows, total, err := e.store.ExecuteQuery(ctx, query, visible)
	if err != nil {
		return nil, err
	}
	pagination := filter.BuildPagination(query.Page, query.PageSize, total)

	if genErr == nil {
		if cErr := e.cache.Set(ctx, table.ID, key, &cache.Entry{Rows: rows, Pagination: pagination}, generation); cErr != nil {
			e.logger.Warnf("Cache write failed: %v", cErr)
		}
	}

	return &FilteredRowsResponse{
		Rows:            rows,
		Pagination:      pagination,
		AppliedFilters:  payload.Filters,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		CacheHit:        false,
	}, nil
}

// ValidateFilters checks a filter set against the table's columns
// without executing anything, collecting every error and warning.
func (e *Engine) ValidateFilters(ctx context.Context, p permissions.Principal, tableID string, filters []filter.FilterConfig) (result filter.ValidationResult, err error) {
	defer func() { e.countRequest(err) }()

	_, visible, err := e.visibleColumns(ctx, p, tableID)
	if err != nil {
		return filter.ValidationResult{}, err
	}

	return filter.ValidateAll(filters, visible), nil
}

// CheckPermission answers a single capability question. An empty
// columnID asks at table level.
func (e *Engine) CheckPermission(ctx context.Context, p permissions.Principal, tableID, columnID string, cap permissions.Capability) (bool, error) {
	if columnID == "" {
		return e.perms.CheckTable(ctx, p, tableID, cap)
	}
	return e.perms.CheckColumn(ctx, p, tableID, columnID, cap)
}

// GetTable returns a table's definition with its columns narrowed to
// the principal's readable set.
func (e *Engine) GetTable(ctx context.Context, p permissions.Principal, tableID string) (t *catalog.Table, err error) {
	defer func() { e.countRequest(err) }()

	table, visible, err := e.visibleColumns(ctx, p, tableID)
	if err != nil {
		return nil, err
	}

	narrowed := *table
	narrowed.Columns = make([]catalog.Column, 0, len(visible))
	for _, spec := range visible {
		if col := table.ColumnByID(spec.ID); col != nil {
			narrowed.Columns = append(narrowed.Columns, *col)
		}
	}

	return &narrowed, nil
}

// ListTables lists a database's tables narrowed to those the principal
// may read. Columns are not loaded here; GetTable resolves them.
func (e *Engine) ListTables(ctx context.Context, p permissions.Principal, databaseID string) (tables []*catalog.Table, err error) {
	defer func() { e.countRequest(err) }()

	all, err := e.catalog.ListTables(ctx, p.TenantID, databaseID)
	if err != nil {
		return nil, err
	}

	visible := make([]*catalog.Table, 0, len(all))
	for _, table := range all {
		allowed, err := e.perms.CheckTable(ctx, p, table.ID, permissions.CapRead)
		if err != nil {
			return nil, err
		}
		if allowed {
			visible = append(visible, table)
		}
	}

	return visible, nil
}

// ListRowIDs pages through a table's row ids in id order. Reference
// pickers use it to enumerate a target table's rows without loading
// any cells.
func (e *Engine) ListRowIDs(ctx context.Context, p permissions.Principal, tableID string, page, pageSize int) (ids []int64, err error) {
	defer func() { e.countRequest(err) }()

	table, _, err := e.visibleColumns(ctx, p, tableID)
	if err != nil {
		return nil, err
	}

	paging := filter.Payload{Page: page, PageSize: pageSize}
	paging.Clamp()

	offset := (paging.Page - 1) * paging.PageSize
	return e.store.ListRowIDs(ctx, p.TenantID, table.ID, paging.PageSize, offset)
}

// GetRow fetches one row with cells narrowed to readable columns.
func (e *Engine) GetRow(ctx context.Context, p permissions.Principal, tableID string, rowID int64) (row *filter.Row, err error) {
	defer func() { e.countRequest(err) }()

	_, visible, err := e.visibleColumns(ctx, p, tableID)
	if err != nil {
		return nil, err
	}

	return e.store.GetRow(ctx, p.TenantID, tableID, rowID, visible)
}

// visibleColumns loads the table (tenant-scoped), enforces table-level
// read access and resolves the principal's readable column specs in
// schema order.
func (e *Engine) visibleColumns(ctx context.Context, p permissions.Principal, tableID string) (*catalog.Table, []coltype.ColumnSpec, error) {
	table, err := e.catalog.GetTable(ctx, p.TenantID, tableID)
	if err != nil {
		return nil, nil, err
	}

	allowed, err := e.perms.CheckTable(ctx, p, table.ID, permissions.CapRead)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, apperror.PermissionDenied("no read access to table %q", table.Name)
	}

	columnIDs := make([]string, len(table.Columns))
	specByID := make(map[string]coltype.ColumnSpec, len(table.Columns))
	for i, col := range table.Columns {
		columnIDs[i] = col.ID
		specByID[col.ID] = col.Spec()
	}

	readable, err := e.perms.ReadableColumns(ctx, p, table.ID, columnIDs)
	if err != nil {
		return nil, nil, err
	}

	visible := make([]coltype.ColumnSpec, 0, len(readable))
	for _, id := range readable {
		visible = append(visible, specByID[id])
	}

	return table, visible, nil
}
