package catalog

import (
	"time"

	"github.com/gridbase/gridbase/internal/coltype"
)

// Database is a tenant-scoped container for tables. One is created at
// tenant provisioning; it only disappears with the tenant.
type Database struct {
	ID       string
	TenantID string
	Name     string
	Created  time.Time
	Updated  time.Time
}

// Table is a user-defined table inside a database. Predefined and
// protected tables cannot be deleted.
type Table struct {
	ID           string
	DatabaseID   string
	TenantID     string
	Name         string
	IsPredefined bool
	IsProtected  bool
	Columns      []Column
	Created      time.Time
	Updated      time.Time
}

// Column is a typed, ordered column of a table. Position is contiguous
// within the table starting at zero.
type Column struct {
	ID               string
	TableID          string
	TenantID         string
	Name             string
	Type             coltype.ColumnType
	Required         bool
	Primary          bool
	Position         int
	CustomOptions    []string
	ReferenceTableID string
	Created          time.Time
	Updated          time.Time
}

// Spec converts the column into the validator's column descriptor.
func (c Column) Spec() coltype.ColumnSpec {
	return coltype.ColumnSpec{
		ID:               c.ID,
		Name:             c.Name,
		Type:             c.Type,
		Required:         c.Required,
		CustomOptions:    c.CustomOptions,
		ReferenceTableID: c.ReferenceTableID,
	}
}

// ColumnDefinition is the caller-supplied shape for creating columns.
type ColumnDefinition struct {
	Name             string
	Type             coltype.ColumnType
	Required         bool
	Primary          bool
	Position         int
	CustomOptions    []string
	ReferenceTableID string
}

// ColumnByID returns the column with the given id, or nil.
func (t *Table) ColumnByID(columnID string) *Column {
	for i := range t.Columns {
		if t.Columns[i].ID == columnID {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnByName returns the column with the given name, or nil.
func (t *Table) ColumnByName(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}
