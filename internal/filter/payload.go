package filter

import (
	"time"

	"github.com/gridbase/gridbase/internal/coltype"
)

// Sort orders accepted by the builder.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pagination bounds. Out-of-range values are clamped, not rejected.
const (
	MinPageSize     = 1
	MaxPageSize     = 100
	DefaultPageSize = 25
)

// SortByID sorts by the row id instead of a column.
const SortByID = "id"

// FilterConfig is one per-column predicate of a filter request.
type FilterConfig struct {
	ID          string           `json:"id"`
	ColumnID    string           `json:"columnId"`
	Operator    coltype.Operator `json:"operator"`
	Value       interface{}      `json:"value"`
	SecondValue interface{}      `json:"secondValue"`
}

// Payload is a complete filter request against one table.
type Payload struct {
	Filters      []FilterConfig `json:"filters"`
	GlobalSearch string         `json:"globalSearch"`
	SortBy       string         `json:"sortBy"`
	SortOrder    string         `json:"sortOrder"`
	Page         int            `json:"page"`
	PageSize     int            `json:"pageSize"`
}

// CompiledFilter is a validated filter with its column binding and
// typed values, ready for SQL compilation.
type CompiledFilter struct {
	Config FilterConfig
	Column coltype.ColumnSpec
	Value  coltype.TypedValue
	Second coltype.TypedValue
}

// Row is one result row: sparse cells keyed by column id, values in
// their external representation.
type Row struct {
	ID      int64                  `json:"id"`
	Cells   map[string]interface{} `json:"cells"`
	Created time.Time              `json:"created"`
	Updated time.Time              `json:"updated"`
}

// Pagination describes the window of a result set. Pages are 1-indexed.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalRows  int  `json:"totalRows"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// ValidationIssue names one problem with a filter request.
type ValidationIssue struct {
	FilterID string `json:"filterId,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// ValidationResult is the outcome of validating a filter set without
// executing it.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// Clamp normalizes paging inputs in place: page at least 1, pageSize
// forced into [MinPageSize, MaxPageSize] with a default when unset, and
// sort order defaulting to ascending.
func (p *Payload) Clamp() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize < MinPageSize {
		p.PageSize = MinPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.SortOrder != SortDesc {
		p.SortOrder = SortAsc
	}
}

// BuildPagination computes the page window for a total row count.
func BuildPagination(page, pageSize, totalRows int) Pagination {
	totalPages := (totalRows + pageSize - 1) / pageSize
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalRows:  totalRows,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
