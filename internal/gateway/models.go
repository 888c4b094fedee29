package gateway

import (
	"github.com/gridbase/gridbase/internal/catalog"
	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/internal/filter"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ColumnDefinitionRequest is the caller-supplied column shape.
type ColumnDefinitionRequest struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Required         bool     `json:"required"`
	Primary          bool     `json:"primary"`
	Position         int      `json:"position"`
	CustomOptions    []string `json:"customOptions,omitempty"`
	ReferenceTableID string   `json:"referenceTableId,omitempty"`
}

func (r ColumnDefinitionRequest) toDefinition() catalog.ColumnDefinition {
	return catalog.ColumnDefinition{
		Name:             r.Name,
		Type:             coltype.ColumnType(r.Type),
		Required:         r.Required,
		Primary:          r.Primary,
		Position:         r.Position,
		CustomOptions:    r.CustomOptions,
		ReferenceTableID: r.ReferenceTableID,
	}
}

// CreateTableRequest represents a create table request
type CreateTableRequest struct {
	Name    string                    `json:"name"`
	Columns []ColumnDefinitionRequest `json:"columns"`
}

// UpdateColumnRequest carries a partial column update.
type UpdateColumnRequest struct {
	Name     *string `json:"name,omitempty"`
	Required *bool   `json:"required,omitempty"`
}

// ReorderColumnsRequest lists every column id in its new order.
type ReorderColumnsRequest struct {
	ColumnIDs []string `json:"columnIds"`
}

// RenameTableRequest represents a rename table request
type RenameTableRequest struct {
	Name string `json:"name"`
}

// CreateRowRequest carries the initial cell values keyed by column id.
type CreateRowRequest struct {
	Cells map[string]interface{} `json:"cells"`
}

// UpdateCellRequest carries a single cell value. A null value clears
// the cell.
type UpdateCellRequest struct {
	Value interface{} `json:"value"`
}

// ValidateFiltersRequest represents a filter validation request
type ValidateFiltersRequest struct {
	Filters []filter.FilterConfig `json:"filters"`
}

// PermissionCheckResponse represents a capability check result
type PermissionCheckResponse struct {
	Allowed bool `json:"allowed"`
}

// HealthCheckResponse represents one dependency's health
type HealthCheckResponse struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse represents the service health with per-check detail
type HealthResponse struct {
	Status string                `json:"status"`
	Checks []HealthCheckResponse `json:"checks,omitempty"`
}

// RowIDsResponse lists row ids for reference pickers.
type RowIDsResponse struct {
	RowIDs []int64 `json:"rowIds"`
}

// ColumnResponse represents a column
type ColumnResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Required         bool     `json:"required"`
	Primary          bool     `json:"primary"`
	Position         int      `json:"position"`
	CustomOptions    []string `json:"customOptions,omitempty"`
	ReferenceTableID string   `json:"referenceTableId,omitempty"`
	Operators        []string `json:"operators"`
}

// TableResponse represents a table with its visible columns
type TableResponse struct {
	ID           string           `json:"id"`
	DatabaseID   string           `json:"databaseId"`
	Name         string           `json:"name"`
	IsPredefined bool             `json:"isPredefined"`
	IsProtected  bool             `json:"isProtected"`
	Columns      []ColumnResponse `json:"columns"`
}

func toColumnResponse(col catalog.Column) ColumnResponse {
	ops := coltype.AvailableOperators(col.Type)
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}

	return ColumnResponse{
		ID:               col.ID,
		Name:             col.Name,
		Type:             string(col.Type),
		Required:         col.Required,
		Primary:          col.Primary,
		Position:         col.Position,
		CustomOptions:    col.CustomOptions,
		ReferenceTableID: col.ReferenceTableID,
		Operators:        names,
	}
}

func toTableResponse(t *catalog.Table) TableResponse {
	resp := TableResponse{
		ID:           t.ID,
		DatabaseID:   t.DatabaseID,
		Name:         t.Name,
		IsPredefined: t.IsPredefined,
		IsProtected:  t.IsProtected,
		Columns:      make([]ColumnResponse, 0, len(t.Columns)),
	}
	for _, col := range t.Columns {
		resp.Columns = append(resp.Columns, toColumnResponse(col))
	}
	return resp
}
