package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/pkg/apperror"
)

// Query is a compiled filter request ready for the row store: a paged
// select of matching row ids and the matching count.
type Query struct {
	TableID    string
	SelectSQL  string
	SelectArgs []interface{}
	CountSQL   string
	CountArgs  []interface{}
	Page       int
	PageSize   int
}

// Compiler turns validated filter payloads into store queries. The
// clock feeds relative date windows so tests can pin time.
type Compiler struct {
	clock func() time.Time
}

// NewCompiler creates a compiler with the given clock. A nil clock
// falls back to time.Now.
func NewCompiler(clock func() time.Time) *Compiler {
	if clock == nil {
		clock = time.Now
	}
	return &Compiler{clock: clock}
}

type argList struct {
	args []interface{}
}

// add appends a query argument and returns its placeholder index.
func (a *argList) add(v interface{}) int {
	a.args = append(a.args, v)
	return len(a.args)
}

func (a *argList) snapshot() []interface{} {
	out := make([]interface{}, len(a.args))
	copy(out, a.args)
	return out
}

// Compile validates the payload (fail-fast) and produces the final
// query: tenant/table scope AND per-column filters AND global search.
// Column visibility restriction is applied by the caller when hydrating
// cells; it never widens the row set.
func (c *Compiler) Compile(tenantID, tableID string, columns []coltype.ColumnSpec, payload Payload) (*Query, []CompiledFilter, error) {
	payload.Clamp()

	compiled, err := Validate(payload.Filters, columns)
	if err != nil {
		return nil, nil, err
	}

	args := &argList{}
	conds := []string{
		fmt.Sprintf("r.table_id = $%d", args.add(tableID)),
		fmt.Sprintf("r.tenant_id = $%d", args.add(tenantID)),
	}

	// Per-column predicates AND together.
	for _, cf := range compiled {
		cond, err := c.filterCondition(cf, args)
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, cond)
	}

	// Global search ORs a case-insensitive substring match across all
	// text-like columns.
	if search := strings.TrimSpace(payload.GlobalSearch); search != "" {
		var textColumns []string
		for _, col := range columns {
			if col.Type == coltype.TypeText || col.Type == coltype.TypeCustomArray {
				textColumns = append(textColumns, col.ID)
			}
		}
		if len(textColumns) > 0 {
			colsIdx := args.add(textColumns)
			patIdx := args.add("%" + escapeLike(search) + "%")
			conds = append(conds, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM cells c WHERE c.row_id = r.row_id AND c.column_id = ANY($%d) AND c.value_text ILIKE $%d)",
				colsIdx, patIdx))
		}
	}

	where := strings.Join(conds, " AND ")
	countSQL := "SELECT COUNT(*) FROM rows r WHERE " + where
	countArgs := args.snapshot()

	join, orderBy, err := c.sortClause(columns, payload, args)
	if err != nil {
		return nil, nil, err
	}

	limitIdx := args.add(payload.PageSize)
	offsetIdx := args.add((payload.Page - 1) * payload.PageSize)

	selectSQL := fmt.Sprintf(
		"SELECT r.row_id, r.created, r.updated FROM rows r%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		join, where, orderBy, limitIdx, offsetIdx)

	return &Query{
		TableID:    tableID,
		SelectSQL:  selectSQL,
		SelectArgs: args.snapshot(),
		CountSQL:   countSQL,
		CountArgs:  countArgs,
		Page:       payload.Page,
		PageSize:   payload.PageSize,
	}, compiled, nil
}

// sortClause resolves sortBy to the row id or an existing column and
// always tie-breaks by row id ascending so pagination stays stable.
func (c *Compiler) sortClause(columns []coltype.ColumnSpec, payload Payload, args *argList) (join, orderBy string, err error) {
	dir := "ASC"
	if payload.SortOrder == SortDesc {
		dir = "DESC"
	}

	if payload.SortBy == "" || payload.SortBy == SortByID {
		return "", "r.row_id " + dir, nil
	}

	var sortCol *coltype.ColumnSpec
	for i := range columns {
		if columns[i].ID == payload.SortBy || columns[i].Name == payload.SortBy {
			sortCol = &columns[i]
			break
		}
	}
	if sortCol == nil {
		return "", "", apperror.Validation("sortBy", "%q is not a column of this table", payload.SortBy)
	}

	idx := args.add(sortCol.ID)
	join = fmt.Sprintf(" LEFT JOIN cells sort_c ON sort_c.row_id = r.row_id AND sort_c.column_id = $%d", idx)
	orderBy = fmt.Sprintf("sort_c.%s %s NULLS LAST, r.row_id ASC", valueColumn(sortCol.Type), dir)
	return join, orderBy, nil
}

// filterCondition compiles one validated filter into an EXISTS (or
// NOT EXISTS) predicate over the cells relation.
func (c *Compiler) filterCondition(cf CompiledFilter, args *argList) (string, error) {
	colIdx := args.add(cf.Column.ID)
	cellScope := fmt.Sprintf("c.row_id = r.row_id AND c.column_id = $%d", colIdx)

	exists := func(cond string) string {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM cells c WHERE %s AND %s)", cellScope, cond)
	}

	op := cf.Config.Operator
	switch op {
	case coltype.OpIsEmpty:
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM cells c WHERE %s AND %s)",
			cellScope, nonEmptyCondition(cf.Column.Type)), nil
	case coltype.OpIsNotEmpty:
		return exists(nonEmptyCondition(cf.Column.Type)), nil
	}

	if isRelativeDateOp(op) {
		start, end := dateWindow(op, c.clock())
		return exists(fmt.Sprintf("c.value_date >= $%d AND c.value_date < $%d",
			args.add(start), args.add(end))), nil
	}

	switch cf.Column.Type {
	case coltype.TypeText:
		return c.textCondition(cf, exists, args)
	case coltype.TypeNumber:
		return c.numberCondition(cf, exists, args)
	case coltype.TypeBoolean:
		switch op {
		case coltype.OpEquals:
			return exists(fmt.Sprintf("c.value_bool = $%d", args.add(cf.Value.Bool))), nil
		case coltype.OpNotEquals:
			return exists(fmt.Sprintf("c.value_bool <> $%d", args.add(cf.Value.Bool))), nil
		}
	case coltype.TypeDate:
		return c.dateCondition(cf, exists, args)
	case coltype.TypeReference:
		switch op {
		case coltype.OpEquals:
			return exists(fmt.Sprintf("c.value_ref = $%d", args.add(cf.Value.Ref))), nil
		case coltype.OpNotEquals:
			return exists(fmt.Sprintf("c.value_ref <> $%d", args.add(cf.Value.Ref))), nil
		}
	case coltype.TypeCustomArray:
		switch op {
		case coltype.OpEquals:
			return exists(fmt.Sprintf("c.value_text = $%d", args.add(cf.Value.Text))), nil
		case coltype.OpNotEquals:
			return exists(fmt.Sprintf("c.value_text <> $%d", args.add(cf.Value.Text))), nil
		}
	}

	return "", apperror.Validation(cf.Config.ID, "operator %q cannot be compiled for type %s", op, cf.Column.Type)
}

func (c *Compiler) textCondition(cf CompiledFilter, exists func(string) string, args *argList) (string, error) {
	value := cf.Value.Text
	switch cf.Config.Operator {
	case coltype.OpContains:
		return exists(fmt.Sprintf("c.value_text ILIKE $%d", args.add("%"+escapeLike(value)+"%"))), nil
	case coltype.OpNotContains:
		return exists(fmt.Sprintf("c.value_text NOT ILIKE $%d", args.add("%"+escapeLike(value)+"%"))), nil
	case coltype.OpEquals:
		return exists(fmt.Sprintf("c.value_text = $%d", args.add(value))), nil
	case coltype.OpNotEquals:
		return exists(fmt.Sprintf("c.value_text <> $%d", args.add(value))), nil
	case coltype.OpStartsWith:
		return exists(fmt.Sprintf("c.value_text ILIKE $%d", args.add(escapeLike(value)+"%"))), nil
	case coltype.OpEndsWith:
		return exists(fmt.Sprintf("c.value_text ILIKE $%d", args.add("%"+escapeLike(value)))), nil
	case coltype.OpRegex:
		return exists(fmt.Sprintf("c.value_text ~ $%d", args.add(value))), nil
	}
	return "", apperror.Validation(cf.Config.ID, "operator %q cannot be compiled for text", cf.Config.Operator)
}

func (c *Compiler) dateCondition(cf CompiledFilter, exists func(string) string, args *argList) (string, error) {
	switch cf.Config.Operator {
	case coltype.OpEquals:
		return exists(fmt.Sprintf("c.value_date = $%d", args.add(cf.Value.Date))), nil
	case coltype.OpNotEquals:
		return exists(fmt.Sprintf("c.value_date <> $%d", args.add(cf.Value.Date))), nil
	case coltype.OpBefore:
		return exists(fmt.Sprintf("c.value_date < $%d", args.add(cf.Value.Date))), nil
	case coltype.OpAfter:
		return exists(fmt.Sprintf("c.value_date > $%d", args.add(cf.Value.Date))), nil
	case coltype.OpBetween:
		return exists(fmt.Sprintf("c.value_date BETWEEN $%d AND $%d",
			args.add(cf.Value.Date), args.add(cf.Second.Date))), nil
	case coltype.OpNotBetween:
		return exists(fmt.Sprintf("c.value_date NOT BETWEEN $%d AND $%d",
			args.add(cf.Value.Date), args.add(cf.Second.Date))), nil
	}
	return "", apperror.Validation(cf.Config.ID, "operator %q cannot be compiled for dates", cf.Config.Operator)
}

func (c *Compiler) numberCondition(cf CompiledFilter, exists func(string) string, args *argList) (string, error) {
	switch cf.Config.Operator {
	case coltype.OpEquals:
		return exists(fmt.Sprintf("c.value_number = $%d", args.add(cf.Value.Number))), nil
	case coltype.OpNotEquals:
		return exists(fmt.Sprintf("c.value_number <> $%d", args.add(cf.Value.Number))), nil
	case coltype.OpGreaterThan:
		return exists(fmt.Sprintf("c.value_number > $%d", args.add(cf.Value.Number))), nil
	case coltype.OpGreaterThanOrEqual:
		return exists(fmt.Sprintf("c.value_number >= $%d", args.add(cf.Value.Number))), nil
	case coltype.OpLessThan:
		return exists(fmt.Sprintf("c.value_number < $%d", args.add(cf.Value.Number))), nil
	case coltype.OpLessThanOrEqual:
		return exists(fmt.Sprintf("c.value_number <= $%d", args.add(cf.Value.Number))), nil
	case coltype.OpBetween:
		return exists(fmt.Sprintf("c.value_number BETWEEN $%d AND $%d",
			args.add(cf.Value.Number), args.add(cf.Second.Number))), nil
	case coltype.OpNotBetween:
		return exists(fmt.Sprintf("c.value_number NOT BETWEEN $%d AND $%d",
			args.add(cf.Value.Number), args.add(cf.Second.Number))), nil
	}
	return "", apperror.Validation(cf.Config.ID, "operator %q cannot be compiled for numbers", cf.Config.Operator)
}

// valueColumn maps a column type to the cells value column it stores
// into.
func valueColumn(t coltype.ColumnType) string {
	switch t {
	case coltype.TypeNumber:
		return "value_number"
	case coltype.TypeBoolean:
		return "value_bool"
	case coltype.TypeDate:
		return "value_date"
	case coltype.TypeReference:
		return "value_ref"
	default:
		return "value_text"
	}
}

// nonEmptyCondition defines emptiness per type: a missing cell, a null
// value, or (for text-like values) an empty string all count as empty.
func nonEmptyCondition(t coltype.ColumnType) string {
	switch t {
	case coltype.TypeText, coltype.TypeCustomArray:
		return "c.value_text IS NOT NULL AND c.value_text <> ''"
	default:
		return "c." + valueColumn(t) + " IS NOT NULL"
	}
}

// escapeLike escapes LIKE/ILIKE metacharacters in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// ValueColumn exposes the cells value column for a type to the row
// store.
func ValueColumn(t coltype.ColumnType) string {
	return valueColumn(t)
}
