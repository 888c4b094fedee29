package coltype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/pkg/apperror"
)

// allOperators is every operator the engine knows about, used to probe
// the compatibility table exhaustively.
var allOperators = []Operator{
	OpContains, OpNotContains, OpEquals, OpNotEquals, OpStartsWith,
	OpEndsWith, OpRegex, OpIsEmpty, OpIsNotEmpty, OpGreaterThan,
	OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpBetween,
	OpNotBetween, OpBefore, OpAfter, OpToday, OpYesterday, OpThisWeek,
	OpLastWeek, OpThisMonth, OpLastMonth, OpThisYear, OpLastYear,
}

func TestOperatorCompatibility(t *testing.T) {
	expected := map[ColumnType]map[Operator]bool{
		TypeText: {
			OpContains: true, OpNotContains: true, OpEquals: true,
			OpNotEquals: true, OpStartsWith: true, OpEndsWith: true,
			OpRegex: true, OpIsEmpty: true, OpIsNotEmpty: true,
		},
		TypeNumber: {
			OpEquals: true, OpNotEquals: true, OpGreaterThan: true,
			OpGreaterThanOrEqual: true, OpLessThan: true,
			OpLessThanOrEqual: true, OpBetween: true, OpNotBetween: true,
			OpIsEmpty: true, OpIsNotEmpty: true,
		},
		TypeBoolean: {
			OpEquals: true, OpNotEquals: true, OpIsEmpty: true, OpIsNotEmpty: true,
		},
		TypeDate: {
			OpEquals: true, OpNotEquals: true, OpBefore: true, OpAfter: true,
			OpBetween: true, OpNotBetween: true, OpToday: true,
			OpYesterday: true, OpThisWeek: true, OpLastWeek: true,
			OpThisMonth: true, OpLastMonth: true, OpThisYear: true,
			OpLastYear: true, OpIsEmpty: true, OpIsNotEmpty: true,
		},
		TypeReference: {
			OpEquals: true, OpNotEquals: true, OpIsEmpty: true, OpIsNotEmpty: true,
		},
		TypeCustomArray: {
			OpEquals: true, OpNotEquals: true, OpIsEmpty: true, OpIsNotEmpty: true,
		},
	}

	for _, colType := range KnownTypes {
		for _, op := range allOperators {
			want := expected[colType][op]
			assert.Equal(t, want, OperatorAllowed(colType, op),
				"type %s operator %s", colType, op)
		}
	}
}

func TestAvailableOperators(t *testing.T) {
	ops := AvailableOperators(TypeBoolean)
	assert.ElementsMatch(t, []Operator{OpEquals, OpNotEquals, OpIsEmpty, OpIsNotEmpty}, ops)

	// Mutating the returned slice must not corrupt the table.
	ops[0] = OpRegex
	assert.True(t, OperatorAllowed(TypeBoolean, OpEquals))
}

func TestRequiresSecondValue(t *testing.T) {
	assert.True(t, RequiresSecondValue(OpBetween))
	assert.True(t, RequiresSecondValue(OpNotBetween))
	assert.False(t, RequiresSecondValue(OpEquals))
	assert.False(t, RequiresSecondValue(OpGreaterThan))
}

func TestValidateValueText(t *testing.T) {
	col := ColumnSpec{Name: "Name", Type: TypeText}

	t.Run("accepts any string", func(t *testing.T) {
		v, err := ValidateValue(col, "John Smith")
		require.NoError(t, err)
		assert.Equal(t, KindText, v.Kind)
		assert.Equal(t, "John Smith", v.Text)
	})

	t.Run("rejects non-strings", func(t *testing.T) {
		_, err := ValidateValue(col, 42)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("required rejects whitespace-only", func(t *testing.T) {
		required := col
		required.Required = true
		_, err := ValidateValue(required, "   ")
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("optional accepts empty", func(t *testing.T) {
		v, err := ValidateValue(col, "")
		require.NoError(t, err)
		assert.Equal(t, "", v.Text)
	})
}

func TestValidateValueNumber(t *testing.T) {
	col := ColumnSpec{Name: "Age", Type: TypeNumber}

	cases := []struct {
		name string
		raw  interface{}
		want float64
		ok   bool
	}{
		{"float", 18.5, 18.5, true},
		{"int", 42, 42, true},
		{"numeric string", "65", 65, true},
		{"bad string", "abc", 0, false},
		{"bool", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ValidateValue(col, tc.raw)
			if !tc.ok {
				assert.True(t, apperror.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Number)
		})
	}
}

func TestValidateValueBoolean(t *testing.T) {
	col := ColumnSpec{Name: "Active", Type: TypeBoolean}

	for raw, want := range map[interface{}]bool{
		true: true, false: false, "true": true, "false": false,
	} {
		v, err := ValidateValue(col, raw)
		require.NoError(t, err)
		assert.Equal(t, want, v.Bool)
	}

	v, err := ValidateValue(col, float64(1))
	require.NoError(t, err)
	assert.True(t, v.Bool)

	v, err = ValidateValue(col, float64(0))
	require.NoError(t, err)
	assert.False(t, v.Bool)

	_, err = ValidateValue(col, "yes")
	assert.True(t, apperror.IsValidation(err))
}

func TestValidateValueDate(t *testing.T) {
	col := ColumnSpec{Name: "DueDate", Type: TypeDate}

	t.Run("RFC3339", func(t *testing.T) {
		v, err := ValidateValue(col, "2026-03-15T10:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC), v.Date)
	})

	t.Run("date only", func(t *testing.T) {
		v, err := ValidateValue(col, "2026-03-15")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), v.Date)
	})

	t.Run("invalid carries offending literal", func(t *testing.T) {
		_, err := ValidateValue(col, "not-a-date")
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
		assert.Contains(t, err.Error(), "not-a-date")
	})
}

func TestValidateValueReference(t *testing.T) {
	col := ColumnSpec{Name: "Owner", Type: TypeReference, ReferenceTableID: "t-1"}

	v, err := ValidateValue(col, float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Ref)

	_, err = ValidateValue(col, 7.5)
	assert.True(t, apperror.IsValidation(err))

	_, err = ValidateValue(col, -3)
	assert.True(t, apperror.IsValidation(err))
}

func TestValidateValueCustomArray(t *testing.T) {
	col := ColumnSpec{Name: "Status", Type: TypeCustomArray, CustomOptions: []string{"A", "B"}}

	t.Run("member accepted", func(t *testing.T) {
		v, err := ValidateValue(col, "B")
		require.NoError(t, err)
		assert.Equal(t, KindEnum, v.Kind)
		assert.Equal(t, "B", v.Text)
	})

	t.Run("non-member rejected", func(t *testing.T) {
		_, err := ValidateValue(col, "C")
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("exact match only", func(t *testing.T) {
		_, err := ValidateValue(col, "a")
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestValidateValueNull(t *testing.T) {
	optional := ColumnSpec{Name: "Notes", Type: TypeText}
	v, err := ValidateValue(optional, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	required := ColumnSpec{Name: "Notes", Type: TypeText, Required: true}
	_, err = ValidateValue(required, nil)
	assert.True(t, apperror.IsValidation(err))
}

// Round trip: formatting a typed value and re-validating it yields the
// same typed value for every supported type.
func TestFormatRoundTrip(t *testing.T) {
	cases := []struct {
		col ColumnSpec
		val TypedValue
	}{
		{ColumnSpec{Name: "c", Type: TypeText}, TypedValue{Kind: KindText, Text: "hello"}},
		{ColumnSpec{Name: "c", Type: TypeNumber}, TypedValue{Kind: KindNumber, Number: 18}},
		{ColumnSpec{Name: "c", Type: TypeBoolean}, TypedValue{Kind: KindBool, Bool: true}},
		{ColumnSpec{Name: "c", Type: TypeDate}, TypedValue{Kind: KindDate, Date: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}},
		{ColumnSpec{Name: "c", Type: TypeReference}, TypedValue{Kind: KindRef, Ref: 12}},
		{ColumnSpec{Name: "c", Type: TypeCustomArray, CustomOptions: []string{"x"}}, TypedValue{Kind: KindEnum, Text: "x"}},
	}

	for _, tc := range cases {
		t.Run(string(tc.col.Type), func(t *testing.T) {
			back, err := ValidateValue(tc.col, tc.val.Format())
			require.NoError(t, err)
			assert.Equal(t, tc.val, back)
		})
	}
}
