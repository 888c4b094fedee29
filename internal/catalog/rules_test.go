package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/pkg/apperror"
)

func TestValidateColumnDefinitions(t *testing.T) {
	valid := []ColumnDefinition{
		{Name: "Name", Type: coltype.TypeText, Position: 0, Primary: true},
		{Name: "Age", Type: coltype.TypeNumber, Position: 1},
		{Name: "Status", Type: coltype.TypeCustomArray, Position: 2, CustomOptions: []string{"A", "B"}},
		{Name: "Owner", Type: coltype.TypeReference, Position: 3, ReferenceTableID: "t-users"},
	}

	t.Run("valid set passes", func(t *testing.T) {
		assert.NoError(t, ValidateColumnDefinitions(valid))
	})

	cases := []struct {
		name string
		defs []ColumnDefinition
	}{
		{
			"duplicate name",
			[]ColumnDefinition{
				{Name: "Name", Type: coltype.TypeText, Position: 0},
				{Name: "Name", Type: coltype.TypeNumber, Position: 1},
			},
		},
		{
			"empty name",
			[]ColumnDefinition{{Name: "", Type: coltype.TypeText, Position: 0}},
		},
		{
			"unknown type",
			[]ColumnDefinition{{Name: "X", Type: "blob", Position: 0}},
		},
		{
			"customArray without options",
			[]ColumnDefinition{{Name: "Status", Type: coltype.TypeCustomArray, Position: 0}},
		},
		{
			"options on non-customArray",
			[]ColumnDefinition{{Name: "X", Type: coltype.TypeText, Position: 0, CustomOptions: []string{"A"}}},
		},
		{
			"reference without target",
			[]ColumnDefinition{{Name: "Owner", Type: coltype.TypeReference, Position: 0}},
		},
		{
			"negative order",
			[]ColumnDefinition{{Name: "X", Type: coltype.TypeText, Position: -1}},
		},
		{
			"non-contiguous order",
			[]ColumnDefinition{
				{Name: "A", Type: coltype.TypeText, Position: 0},
				{Name: "B", Type: coltype.TypeText, Position: 2},
			},
		},
		{
			"two primary columns",
			[]ColumnDefinition{
				{Name: "A", Type: coltype.TypeText, Position: 0, Primary: true},
				{Name: "B", Type: coltype.TypeText, Position: 1, Primary: true},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateColumnDefinitions(tc.defs)
			assert.True(t, apperror.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestValidateReorder(t *testing.T) {
	existing := []Column{
		{ID: "c1", Position: 0},
		{ID: "c2", Position: 1},
		{ID: "c3", Position: 2},
	}

	t.Run("exact permutation accepted", func(t *testing.T) {
		assert.NoError(t, ValidateReorder(existing, []string{"c3", "c1", "c2"}))
	})

	t.Run("missing column rejected", func(t *testing.T) {
		err := ValidateReorder(existing, []string{"c1", "c2"})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("unknown column rejected", func(t *testing.T) {
		err := ValidateReorder(existing, []string{"c1", "c2", "c9"})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := ValidateReorder(existing, []string{"c1", "c2", "c2"})
		assert.True(t, apperror.IsValidation(err))
	})
}
