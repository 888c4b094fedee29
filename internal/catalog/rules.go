package catalog

import (
	"sort"

	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/pkg/apperror"
)

// ValidateColumnDefinitions applies the static rules every column set
// must satisfy before it reaches the store: known types, unique names,
// customArray options, reference targets, contiguous ordering and at
// most one primary column.
func ValidateColumnDefinitions(defs []ColumnDefinition) error {
	seen := make(map[string]bool, len(defs))
	positions := make([]int, 0, len(defs))
	primaries := 0

	for _, def := range defs {
		if def.Name == "" {
			return apperror.Validation("name", "column name must not be empty")
		}
		if seen[def.Name] {
			return apperror.Validation(def.Name, "duplicate column name")
		}
		seen[def.Name] = true

		if !coltype.IsKnownType(def.Type) {
			return apperror.Validation(def.Name, "unknown column type %q", def.Type)
		}
		if def.Type == coltype.TypeCustomArray && len(def.CustomOptions) == 0 {
			return apperror.Validation(def.Name, "customArray column requires at least one option")
		}
		if def.Type != coltype.TypeCustomArray && len(def.CustomOptions) > 0 {
			return apperror.Validation(def.Name, "customOptions are only valid on customArray columns")
		}
		if def.Type == coltype.TypeReference && def.ReferenceTableID == "" {
			return apperror.Validation(def.Name, "reference column requires a target table")
		}
		if def.Type != coltype.TypeReference && def.ReferenceTableID != "" {
			return apperror.Validation(def.Name, "referenceTableId is only valid on reference columns")
		}
		if def.Position < 0 {
			return apperror.Validation(def.Name, "column order must not be negative")
		}
		if def.Primary {
			primaries++
		}
		positions = append(positions, def.Position)
	}

	if primaries > 1 {
		return apperror.Validation("primary", "at most one primary column per table")
	}

	sort.Ints(positions)
	for i, p := range positions {
		if p != i {
			return apperror.Validation("order", "column order must be contiguous starting at 0")
		}
	}

	return nil
}

// ValidateReorder checks that the requested ordering is exactly the
// set of existing column ids, no more, no less.
func ValidateReorder(existing []Column, orderedIDs []string) error {
	if len(orderedIDs) != len(existing) {
		return apperror.Validation("columns", "ordering must list every column exactly once (%d given, %d exist)",
			len(orderedIDs), len(existing))
	}

	known := make(map[string]bool, len(existing))
	for _, col := range existing {
		known[col.ID] = true
	}

	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if !known[id] {
			return apperror.Validation("columns", "unknown column id %q in ordering", id)
		}
		if seen[id] {
			return apperror.Validation("columns", "column id %q listed twice", id)
		}
		seen[id] = true
	}

	return nil
}
