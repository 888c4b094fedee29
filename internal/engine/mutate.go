package engine

import (
	"context"

	"github.com/gridbase/gridbase/internal/catalog"
	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/internal/filter"
	"github.com/gridbase/gridbase/internal/permissions"
	"github.com/gridbase/gridbase/internal/rowstore"
	"github.com/gridbase/gridbase/pkg/apperror"
)

// Schema operations are tenant-admin only: table and column permissions
// gate data access, not schema shape.

// CreateTable creates a table with its initial columns.
func (e *Engine) CreateTable(ctx context.Context, p permissions.Principal, databaseID, name string, defs []catalog.ColumnDefinition) (t *catalog.Table, err error) {
	defer func() { e.countRequest(err) }()

	if !p.IsAdmin() {
		return nil, apperror.PermissionDenied("schema changes require the admin role")
	}

	return e.catalog.CreateTable(ctx, p.TenantID, databaseID, name, defs)
}

// AddColumn appends a column to a table and drops the table's cached
// results.
func (e *Engine) AddColumn(ctx context.Context, p permissions.Principal, tableID string, def catalog.ColumnDefinition) (c *catalog.Column, err error) {
	defer func() { e.countRequest(err) }()

	if !p.IsAdmin() {
		return nil, apperror.PermissionDenied("schema changes require the admin role")
	}

	col, err := e.catalog.AddColumn(ctx, p.TenantID, tableID, def)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, tableID)

	return col, nil
}

// UpdateColumn changes a column's name or required flag.
func (e *Engine) UpdateColumn(ctx context.Context, p permissions.Principal, tableID, columnID string, newName *string, required *bool) (c *catalog.Column, err error) {
	defer func() { e.countRequest(err) }()

	if !p.IsAdmin() {
		return nil, apperror.PermissionDenied("schema changes require the admin role")
	}

	col, err := e.catalog.UpdateColumn(ctx, p.TenantID, tableID, columnID, newName, required)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, tableID)

	return col, nil
}

// ReorderColumns applies a full column ordering.
func (e *Engine) ReorderColumns(ctx context.Context, p permissions.Principal, tableID string, orderedIDs []string) (err error) {
	defer func() { e.countRequest(err) }()

	if !p.IsAdmin() {
		return apperror.PermissionDenied("schema changes require the admin role")
	}

	if err := e.catalog.ReorderColumns(ctx, p.TenantID, tableID, orderedIDs); err != nil {
		return err
	}
	e.invalidate(ctx, tableID)

	return nil
}

// DeleteColumn removes a column and every cell stored under it.
func (e *Engine) DeleteColumn(ctx context.Context, p permissions.Principal, tableID, columnID string) (err error) {
	defer func() { e.countRequest(err) }()

	if !p.IsAdmin() {
		return apperror.PermissionDenied("schema changes require the admin role")
	}

	if err := e.catalog.DeleteColumn(ctx, p.TenantID, tableID, columnID); err != nil {
		return err
	}
	e.invalidate(ctx, tableID)

	return nil
}

// DeleteTable removes a table and everything under it.
func (e *Engine) DeleteTable(ctx context.Context, p permissions.Principal, tableID string) (err error) {
	defer func() { e.countRequest(err) }()

	if !p.IsAdmin() {
		return apperror.PermissionDenied("schema changes require the admin role")
	}

	if err := e.catalog.DeleteTable(ctx, p.TenantID, tableID); err != nil {
		return err
	}
	e.invalidate(ctx, tableID)

	return nil
}

// RenameTable renames a table.
func (e *Engine) RenameTable(ctx context.Context, p permissions.Principal, tableID, newName string) (t *catalog.Table, err error) {
	defer func() { e.countRequest(err) }()

	if !p.IsAdmin() {
		return nil, apperror.PermissionDenied("schema changes require the admin role")
	}

	return e.catalog.RenameTable(ctx, p.TenantID, tableID, newName)
}

// CreateRow validates and writes a new row with its initial cells. All
// permission checks happen before the store is touched; the row and its
// cells become visible atomically, and the table's cached results are
// dropped before the call returns.
func (e *Engine) CreateRow(ctx context.Context, p permissions.Principal, tableID string, values map[string]interface{}) (row *filter.Row, err error) {
	defer func() { e.countRequest(err) }()

	table, err := e.catalog.GetTable(ctx, p.TenantID, tableID)
	if err != nil {
		return nil, err
	}

	if err := e.requireTableCap(ctx, p, table, permissions.CapEdit, "edit"); err != nil {
		return nil, err
	}
	for columnID := range values {
		if table.ColumnByID(columnID) == nil {
			return nil, apperror.Validation(columnID, "unknown column")
		}
		if err := e.requireColumnCap(ctx, p, table, columnID, permissions.CapEdit); err != nil {
			return nil, err
		}
	}

	typed := make(rowstore.CellValues, len(values))
	for columnID, raw := range values {
		col := table.ColumnByID(columnID)
		value, err := e.coerceCell(ctx, p, *col, raw)
		if err != nil {
			return nil, err
		}
		typed[columnID] = value
	}

	// Required columns must be written at creation.
	for _, col := range table.Columns {
		if !col.Required {
			continue
		}
		if v, ok := typed[col.ID]; !ok || v.IsNull() {
			return nil, apperror.Validation(col.Name, "required column has no value")
		}
	}

	created, err := e.store.CreateRow(ctx, p.TenantID, table.ID, typed)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, table.ID)

	return created, nil
}

// UpdateCell writes a single cell. Writing nil clears the cell unless
// the column is required.
func (e *Engine) UpdateCell(ctx context.Context, p permissions.Principal, tableID string, rowID int64, columnID string, raw interface{}) (err error) {
	defer func() { e.countRequest(err) }()

	table, err := e.catalog.GetTable(ctx, p.TenantID, tableID)
	if err != nil {
		return err
	}

	col := table.ColumnByID(columnID)
	if col == nil {
		return apperror.Validation(columnID, "unknown column")
	}
	if err := e.requireColumnCap(ctx, p, table, columnID, permissions.CapEdit); err != nil {
		return err
	}

	value, err := e.coerceCell(ctx, p, *col, raw)
	if err != nil {
		return err
	}
	if value.IsNull() && col.Required {
		return apperror.Validation(col.Name, "required column cannot be cleared")
	}

	if err := e.store.UpsertCell(ctx, p.TenantID, table.ID, rowID, columnID, value); err != nil {
		return err
	}
	e.invalidate(ctx, table.ID)

	return nil
}

// DeleteRow removes a row. Deletion is gated at table level only.
func (e *Engine) DeleteRow(ctx context.Context, p permissions.Principal, tableID string, rowID int64) (err error) {
	defer func() { e.countRequest(err) }()

	table, err := e.catalog.GetTable(ctx, p.TenantID, tableID)
	if err != nil {
		return err
	}
	if err := e.requireTableCap(ctx, p, table, permissions.CapDelete, "delete"); err != nil {
		return err
	}

	if err := e.store.DeleteRow(ctx, p.TenantID, table.ID, rowID); err != nil {
		return err
	}
	e.invalidate(ctx, table.ID)

	return nil
}

// coerceCell validates a raw value against the column and, for
// reference columns, checks that the target row exists in the
// referenced table within the same tenant.
func (e *Engine) coerceCell(ctx context.Context, p permissions.Principal, col catalog.Column, raw interface{}) (coltype.TypedValue, error) {
	value, err := coltype.ValidateValue(col.Spec(), raw)
	if err != nil {
		return coltype.Null(), err
	}

	if value.Kind == coltype.KindRef {
		exists, err := e.store.RowExists(ctx, p.TenantID, col.ReferenceTableID, value.Ref)
		if err != nil {
			return coltype.Null(), err
		}
		if !exists {
			return coltype.Null(), apperror.Validation(col.Name, "referenced row %d does not exist", value.Ref)
		}
	}

	return value, nil
}

func (e *Engine) requireTableCap(ctx context.Context, p permissions.Principal, table *catalog.Table, cap permissions.Capability, verb string) error {
	allowed, err := e.perms.CheckTable(ctx, p, table.ID, cap)
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.PermissionDenied("no %s access to table %q", verb, table.Name)
	}
	return nil
}

func (e *Engine) requireColumnCap(ctx context.Context, p permissions.Principal, table *catalog.Table, columnID string, cap permissions.Capability) error {
	allowed, err := e.perms.CheckColumn(ctx, p, table.ID, columnID, cap)
	if err != nil {
		return err
	}
	if !allowed {
		col := table.ColumnByID(columnID)
		return apperror.PermissionDenied("no edit access to column %q", col.Name)
	}
	return nil
}

// invalidate drops the table's cached results. Invalidation precedes
// the mutation's visible completion; a backend failure here is logged
// and otherwise degrades the cache to TTL-bounded staleness.
func (e *Engine) invalidate(ctx context.Context, tableID string) {
	if err := e.cache.InvalidateTable(ctx, tableID); err != nil {
		e.logger.Errorf("Cache invalidation failed for table %s: %v", tableID, err)
	}
}
