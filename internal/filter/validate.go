package filter

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/pkg/apperror"
)

// Validate checks every filter against the column set and the operator
// compatibility table, failing fast on the first invalid filter. It
// returns the compiled filters in request order.
func Validate(filters []FilterConfig, columns []coltype.ColumnSpec) ([]CompiledFilter, error) {
	byID := make(map[string]coltype.ColumnSpec, len(columns))
	for _, col := range columns {
		byID[col.ID] = col
	}

	compiled := make([]CompiledFilter, 0, len(filters))
	for _, f := range filters {
		cf, err := validateOne(f, byID)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, cf)
	}

	return compiled, nil
}

// ValidateAll checks every filter and collects all errors and warnings
// instead of stopping at the first failure.
func ValidateAll(filters []FilterConfig, columns []coltype.ColumnSpec) ValidationResult {
	byID := make(map[string]coltype.ColumnSpec, len(columns))
	for _, col := range columns {
		byID[col.ID] = col
	}

	result := ValidationResult{IsValid: true}
	for _, f := range filters {
		cf, err := validateOne(f, byID)
		if err != nil {
			result.IsValid = false
			issue := ValidationIssue{FilterID: f.ID, Message: err.Error()}
			var appErr *apperror.Error
			if errors.As(err, &appErr) {
				issue.Field = appErr.Field
				issue.Message = appErr.Message
			}
			result.Errors = append(result.Errors, issue)
			continue
		}

		if cf.Value.Kind == coltype.KindText && strings.TrimSpace(cf.Value.Text) == "" &&
			coltype.RequiresValue(f.Operator) {
			result.Warnings = append(result.Warnings, ValidationIssue{
				FilterID: f.ID,
				Message:  "empty text value matches broadly",
			})
		}
	}

	return result
}

func validateOne(f FilterConfig, byID map[string]coltype.ColumnSpec) (CompiledFilter, error) {
	col, ok := byID[f.ColumnID]
	if !ok {
		return CompiledFilter{}, apperror.Validation(f.ID, "unknown column %q", f.ColumnID)
	}

	if !coltype.OperatorAllowed(col.Type, f.Operator) {
		return CompiledFilter{}, apperror.Validation(f.ID,
			"operator %q is not valid for column %q of type %s", f.Operator, col.Name, col.Type)
	}

	cf := CompiledFilter{Config: f, Column: col}

	// Filter values are compared, never stored, so the column's
	// required flag does not apply here.
	spec := col
	spec.Required = false

	if coltype.RequiresValue(f.Operator) {
		if f.Value == nil {
			return CompiledFilter{}, apperror.Validation(f.ID, "operator %q requires a value", f.Operator)
		}
		value, err := coltype.ValidateValue(spec, f.Value)
		if err != nil {
			return CompiledFilter{}, rewrapForFilter(f.ID, err)
		}
		cf.Value = value
	}

	if coltype.RequiresSecondValue(f.Operator) {
		if f.SecondValue == nil {
			return CompiledFilter{}, apperror.Validation(f.ID, "operator %q requires a second value", f.Operator)
		}
		second, err := coltype.ValidateValue(spec, f.SecondValue)
		if err != nil {
			return CompiledFilter{}, rewrapForFilter(f.ID, err)
		}
		cf.Second = second
	}

	if f.Operator == coltype.OpRegex {
		if _, err := regexp.Compile(cf.Value.Text); err != nil {
			return CompiledFilter{}, apperror.Validation(f.ID, "invalid regular expression: %v", err)
		}
	}

	return cf, nil
}

// rewrapForFilter renames a value validation error so it points at the
// offending filter id rather than the column.
func rewrapForFilter(filterID string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return apperror.Validation(filterID, "%s", appErr.Message)
	}
	return apperror.Validation(filterID, "%v", err)
}
