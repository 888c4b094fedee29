package rowstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/coltype"
)

func TestCellParamsSetsExactlyOneColumn(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value coltype.TypedValue
		check func(t *testing.T, text *string, number *float64, boolean *bool, date *time.Time, ref *int64)
	}{
		{
			name:  "text",
			value: coltype.TypedValue{Kind: coltype.KindText, Text: "hello"},
			check: func(t *testing.T, text *string, number *float64, boolean *bool, date *time.Time, ref *int64) {
				require.NotNil(t, text)
				assert.Equal(t, "hello", *text)
			},
		},
		{
			name:  "enum stores as text",
			value: coltype.TypedValue{Kind: coltype.KindEnum, Text: "B"},
			check: func(t *testing.T, text *string, number *float64, boolean *bool, date *time.Time, ref *int64) {
				require.NotNil(t, text)
				assert.Equal(t, "B", *text)
			},
		},
		{
			name:  "number",
			value: coltype.TypedValue{Kind: coltype.KindNumber, Number: 3.5},
			check: func(t *testing.T, text *string, number *float64, boolean *bool, date *time.Time, ref *int64) {
				require.NotNil(t, number)
				assert.Equal(t, 3.5, *number)
			},
		},
		{
			name:  "bool",
			value: coltype.TypedValue{Kind: coltype.KindBool, Bool: true},
			check: func(t *testing.T, text *string, number *float64, boolean *bool, date *time.Time, ref *int64) {
				require.NotNil(t, boolean)
				assert.True(t, *boolean)
			},
		},
		{
			name:  "date normalized to UTC",
			value: coltype.TypedValue{Kind: coltype.KindDate, Date: when.In(time.FixedZone("X", 3600))},
			check: func(t *testing.T, text *string, number *float64, boolean *bool, date *time.Time, ref *int64) {
				require.NotNil(t, date)
				assert.True(t, date.Equal(when))
				assert.Equal(t, time.UTC, date.Location())
			},
		},
		{
			name:  "ref",
			value: coltype.TypedValue{Kind: coltype.KindRef, Ref: 42},
			check: func(t *testing.T, text *string, number *float64, boolean *bool, date *time.Time, ref *int64) {
				require.NotNil(t, ref)
				assert.Equal(t, int64(42), *ref)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, number, boolean, date, ref := cellParams(tc.value)

			set := 0
			for _, p := range []bool{text != nil, number != nil, boolean != nil, date != nil, ref != nil} {
				if p {
					set++
				}
			}
			assert.Equal(t, 1, set, "exactly one value column must be set")
			tc.check(t, text, number, boolean, date, ref)
		})
	}

	t.Run("null sets nothing", func(t *testing.T) {
		text, number, boolean, date, ref := cellParams(coltype.Null())
		assert.Nil(t, text)
		assert.Nil(t, number)
		assert.Nil(t, boolean)
		assert.Nil(t, date)
		assert.Nil(t, ref)
	})
}

func TestScannedValueFollowsColumnType(t *testing.T) {
	text := "x"
	number := 7.0
	when := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	t.Run("text column reads value_text", func(t *testing.T) {
		v := scannedValue(coltype.TypeText, &text, nil, nil, nil, nil)
		assert.Equal(t, coltype.KindText, v.Kind)
		assert.Equal(t, "x", v.Text)
	})

	t.Run("enum column reads value_text as enum", func(t *testing.T) {
		v := scannedValue(coltype.TypeCustomArray, &text, nil, nil, nil, nil)
		assert.Equal(t, coltype.KindEnum, v.Kind)
	})

	t.Run("column type wins over stray columns", func(t *testing.T) {
		// A number column with only value_text set reads as null.
		v := scannedValue(coltype.TypeNumber, &text, nil, nil, nil, nil)
		assert.True(t, v.IsNull())
	})

	t.Run("number", func(t *testing.T) {
		v := scannedValue(coltype.TypeNumber, nil, &number, nil, nil, nil)
		assert.Equal(t, 7.0, v.Number)
	})

	t.Run("date formats as RFC3339", func(t *testing.T) {
		v := scannedValue(coltype.TypeDate, nil, nil, nil, &when, nil)
		assert.Equal(t, "2026-05-04T00:00:00Z", v.Format())
	})

	t.Run("all nil is null", func(t *testing.T) {
		v := scannedValue(coltype.TypeBoolean, nil, nil, nil, nil, nil)
		assert.True(t, v.IsNull())
	})
}
