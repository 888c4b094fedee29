package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/pkg/apperror"
)

var testColumns = []coltype.ColumnSpec{
	{ID: "col-name", Name: "Name", Type: coltype.TypeText},
	{ID: "col-age", Name: "Age", Type: coltype.TypeNumber},
	{ID: "col-active", Name: "Active", Type: coltype.TypeBoolean},
	{ID: "col-due", Name: "DueDate", Type: coltype.TypeDate},
	{ID: "col-status", Name: "Status", Type: coltype.TypeCustomArray, CustomOptions: []string{"A", "B"}},
}

func fixedClock() time.Time {
	// A Wednesday.
	return time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC)
}

func TestValidateFailFast(t *testing.T) {
	filters := []FilterConfig{
		{ID: "f1", ColumnID: "col-name", Operator: coltype.OpGreaterThan, Value: "x"},
		{ID: "f2", ColumnID: "col-missing", Operator: coltype.OpEquals, Value: "y"},
	}

	_, err := Validate(filters, testColumns)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	// Fail-fast: the first invalid filter is reported, not the second.
	assert.Contains(t, err.Error(), "f1")
}

// Operator incompatible with the column type names the filter id.
func TestValidateOperatorMismatch(t *testing.T) {
	filters := []FilterConfig{
		{ID: "f-42", ColumnID: "col-name", Operator: coltype.OpGreaterThan, Value: "10"},
	}

	_, err := Validate(filters, testColumns)
	require.Error(t, err)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Equal(t, "f-42", appErr.Field)
}

func TestValidateBetweenRequiresSecondValue(t *testing.T) {
	filters := []FilterConfig{
		{ID: "f-range", ColumnID: "col-age", Operator: coltype.OpBetween, Value: 18},
	}

	_, err := Validate(filters, testColumns)
	require.Error(t, err)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "f-range", appErr.Field)
	assert.Contains(t, appErr.Message, "second value")
}

func TestValidateAllCollectsEverything(t *testing.T) {
	filters := []FilterConfig{
		{ID: "f1", ColumnID: "col-name", Operator: coltype.OpGreaterThan, Value: "x"},
		{ID: "f2", ColumnID: "col-age", Operator: coltype.OpEquals, Value: "abc"},
		{ID: "f3", ColumnID: "col-name", Operator: coltype.OpContains, Value: "ok"},
	}

	result := ValidateAll(filters, testColumns)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "f1", result.Errors[0].FilterID)
	assert.Equal(t, "f2", result.Errors[1].FilterID)
}

func TestValidateRegex(t *testing.T) {
	good := []FilterConfig{{ID: "f1", ColumnID: "col-name", Operator: coltype.OpRegex, Value: "^Jo.*"}}
	_, err := Validate(good, testColumns)
	assert.NoError(t, err)

	bad := []FilterConfig{{ID: "f1", ColumnID: "col-name", Operator: coltype.OpRegex, Value: "[unclosed"}}
	_, err = Validate(bad, testColumns)
	assert.True(t, apperror.IsValidation(err))
}

func TestCompileNumberBetween(t *testing.T) {
	payload := Payload{
		Filters: []FilterConfig{
			{ID: "f1", ColumnID: "col-age", Operator: coltype.OpBetween, Value: 18, SecondValue: 65},
		},
		Page:     1,
		PageSize: 25,
	}

	q, compiled, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	require.NoError(t, err)
	require.Len(t, compiled, 1)

	assert.Contains(t, q.SelectSQL, "c.value_number BETWEEN $4 AND $5")
	assert.Contains(t, q.SelectSQL, "r.table_id = $1")
	assert.Contains(t, q.SelectSQL, "r.tenant_id = $2")
	assert.Equal(t, "table-1", q.SelectArgs[0])
	assert.Equal(t, "tenant-1", q.SelectArgs[1])
	assert.Equal(t, "col-age", q.SelectArgs[2])
	assert.Equal(t, float64(18), q.SelectArgs[3])
	assert.Equal(t, float64(65), q.SelectArgs[4])
}

func TestCompileTextContainsIsCaseInsensitive(t *testing.T) {
	payload := Payload{
		Filters: []FilterConfig{
			{ID: "f1", ColumnID: "col-name", Operator: coltype.OpContains, Value: "John"},
		},
		Page:     1,
		PageSize: 25,
	}

	q, _, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	require.NoError(t, err)

	assert.Contains(t, q.SelectSQL, "c.value_text ILIKE $4")
	assert.Equal(t, "%John%", q.SelectArgs[3])
}

func TestCompileEscapesLikeMetacharacters(t *testing.T) {
	payload := Payload{
		Filters: []FilterConfig{
			{ID: "f1", ColumnID: "col-name", Operator: coltype.OpContains, Value: "50%_off"},
		},
		Page:     1,
		PageSize: 25,
	}

	q, _, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	require.NoError(t, err)
	assert.Equal(t, `%50\%\_off%`, q.SelectArgs[3])
}

func TestCompileGlobalSearchSpansTextLikeColumns(t *testing.T) {
	payload := Payload{GlobalSearch: "john", Page: 1, PageSize: 25}

	q, _, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	require.NoError(t, err)

	assert.Contains(t, q.SelectSQL, "c.column_id = ANY($3)")
	assert.Contains(t, q.SelectSQL, "c.value_text ILIKE $4")
	assert.ElementsMatch(t, []string{"col-name", "col-status"}, q.SelectArgs[2])
	assert.Equal(t, "%john%", q.SelectArgs[3])
}

func TestCompileIsEmpty(t *testing.T) {
	payload := Payload{
		Filters: []FilterConfig{
			{ID: "f1", ColumnID: "col-name", Operator: coltype.OpIsEmpty},
		},
		Page:     1,
		PageSize: 25,
	}

	q, _, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	require.NoError(t, err)
	assert.Contains(t, q.SelectSQL, "NOT EXISTS")
	assert.Contains(t, q.SelectSQL, "c.value_text IS NOT NULL AND c.value_text <> ''")
}

func TestCompileRelativeDateWindow(t *testing.T) {
	payload := Payload{
		Filters: []FilterConfig{
			{ID: "f1", ColumnID: "col-due", Operator: coltype.OpThisWeek},
		},
		Page:     1,
		PageSize: 25,
	}

	q, _, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	require.NoError(t, err)

	// 2026-08-19 is a Wednesday; its ISO week starts Monday the 17th.
	assert.Equal(t, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), q.SelectArgs[3])
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), q.SelectArgs[4])
}

func TestCompileSortByColumnWithRowIDTieBreak(t *testing.T) {
	payload := Payload{SortBy: "Age", SortOrder: SortDesc, Page: 2, PageSize: 10}

	q, _, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	require.NoError(t, err)

	assert.Contains(t, q.SelectSQL, "LEFT JOIN cells sort_c")
	assert.Contains(t, q.SelectSQL, "ORDER BY sort_c.value_number DESC NULLS LAST, r.row_id ASC")
	assert.Contains(t, q.SelectSQL, "LIMIT $4 OFFSET $5")
	assert.Equal(t, 10, q.SelectArgs[3])
	assert.Equal(t, 10, q.SelectArgs[4])
}

func TestCompileSortByUnknownColumn(t *testing.T) {
	payload := Payload{SortBy: "Nope", Page: 1, PageSize: 10}

	_, _, err := NewCompiler(fixedClock).Compile("tenant-1", "table-1", testColumns, payload)
	assert.True(t, apperror.IsValidation(err))
}

func TestClamp(t *testing.T) {
	p := Payload{Page: 0, PageSize: 10000}
	p.Clamp()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, SortAsc, p.SortOrder)

	p = Payload{Page: -3, PageSize: 0}
	p.Clamp()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)

	p = Payload{Page: 2, PageSize: -5, SortOrder: SortDesc}
	p.Clamp()
	assert.Equal(t, MinPageSize, p.PageSize)
	assert.Equal(t, SortDesc, p.SortOrder)
}

func TestBuildPagination(t *testing.T) {
	pg := BuildPagination(1, 10, 25)
	assert.Equal(t, 3, pg.TotalPages)
	assert.True(t, pg.HasNext)
	assert.False(t, pg.HasPrev)

	pg = BuildPagination(3, 10, 25)
	assert.False(t, pg.HasNext)
	assert.True(t, pg.HasPrev)

	pg = BuildPagination(1, 10, 0)
	assert.Equal(t, 0, pg.TotalPages)
	assert.False(t, pg.HasNext)
	assert.False(t, pg.HasPrev)
}

func TestSignatureCanonicalization(t *testing.T) {
	a := Payload{
		Filters: []FilterConfig{
			{ID: "x", ColumnID: "col-age", Operator: coltype.OpEquals, Value: 5},
			{ID: "y", ColumnID: "col-name", Operator: coltype.OpContains, Value: "jo"},
		},
		Page: 1, PageSize: 25,
	}
	b := Payload{
		Filters: []FilterConfig{
			{ID: "other", ColumnID: "col-name", Operator: coltype.OpContains, Value: "jo"},
			{ID: "ids-differ", ColumnID: "col-age", Operator: coltype.OpEquals, Value: 5},
		},
		Page: 1, PageSize: 25,
	}

	cols := []string{"col-name", "col-age"}
	assert.Equal(t, Signature("t1", a, cols), Signature("t1", b, cols))

	t.Run("different table differs", func(t *testing.T) {
		assert.NotEqual(t, Signature("t1", a, cols), Signature("t2", a, cols))
	})

	t.Run("different page differs", func(t *testing.T) {
		c := a
		c.Page = 2
		assert.NotEqual(t, Signature("t1", a, cols), Signature("t1", c, cols))
	})

	t.Run("different visibility differs", func(t *testing.T) {
		assert.NotEqual(t, Signature("t1", a, cols), Signature("t1", a, []string{"col-name"}))
	})

	t.Run("visibility order does not matter", func(t *testing.T) {
		assert.Equal(t, Signature("t1", a, []string{"col-age", "col-name"}), Signature("t1", a, cols))
	})
}

func TestDateWindows(t *testing.T) {
	now := fixedClock() // Wednesday 2026-08-19

	cases := []struct {
		op         coltype.Operator
		start, end time.Time
	}{
		{coltype.OpToday, time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{coltype.OpYesterday, time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)},
		{coltype.OpThisWeek, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)},
		{coltype.OpLastWeek, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)},
		{coltype.OpThisMonth, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		{coltype.OpLastMonth, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{coltype.OpThisYear, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{coltype.OpLastYear, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			start, end := dateWindow(tc.op, now)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}

	t.Run("sunday belongs to the week started the previous monday", func(t *testing.T) {
		sunday := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
		start, _ := dateWindow(coltype.OpThisWeek, sunday)
		assert.Equal(t, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), start)
	})
}
