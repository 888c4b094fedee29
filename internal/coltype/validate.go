package coltype

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gridbase/gridbase/pkg/apperror"
)

// dateLayouts are accepted in order; RFC3339 is preferred.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ValidateValue coerces raw into the typed value domain of the column,
// or returns a validation error naming the column. A nil raw value is
// accepted as null unless the column is required.
func ValidateValue(col ColumnSpec, raw interface{}) (TypedValue, error) {
	if raw == nil {
		if col.Required {
			return Null(), apperror.Validation(col.Name, "value is required")
		}
		return Null(), nil
	}

	switch col.Type {
	case TypeText:
		return validateText(col, raw)
	case TypeNumber:
		return validateNumber(col, raw)
	case TypeBoolean:
		return validateBoolean(col, raw)
	case TypeDate:
		return validateDate(col, raw)
	case TypeReference:
		return validateReference(col, raw)
	case TypeCustomArray:
		return validateCustomArray(col, raw)
	default:
		return Null(), apperror.Validation(col.Name, "unsupported column type %q", col.Type)
	}
}

func validateText(col ColumnSpec, raw interface{}) (TypedValue, error) {
	s, ok := raw.(string)
	if !ok {
		return Null(), apperror.Validation(col.Name, "expected a string, got %T", raw)
	}
	if col.Required && strings.TrimSpace(s) == "" {
		return Null(), apperror.Validation(col.Name, "value must not be empty")
	}
	return TypedValue{Kind: KindText, Text: s}, nil
}

func validateNumber(col ColumnSpec, raw interface{}) (TypedValue, error) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return Null(), apperror.Validation(col.Name, "%q is not a number", v.String())
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Null(), apperror.Validation(col.Name, "%q is not a number", v)
		}
		n = parsed
	default:
		return Null(), apperror.Validation(col.Name, "expected a number, got %T", raw)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Null(), apperror.Validation(col.Name, "number must be finite")
	}
	return TypedValue{Kind: KindNumber, Number: n}, nil
}

func validateBoolean(col ColumnSpec, raw interface{}) (TypedValue, error) {
	switch v := raw.(type) {
	case bool:
		return TypedValue{Kind: KindBool, Bool: v}, nil
	case string:
		switch v {
		case "true":
			return TypedValue{Kind: KindBool, Bool: true}, nil
		case "false":
			return TypedValue{Kind: KindBool, Bool: false}, nil
		}
	case float64:
		if v == 1 {
			return TypedValue{Kind: KindBool, Bool: true}, nil
		}
		if v == 0 {
			return TypedValue{Kind: KindBool, Bool: false}, nil
		}
	case int:
		if v == 1 {
			return TypedValue{Kind: KindBool, Bool: true}, nil
		}
		if v == 0 {
			return TypedValue{Kind: KindBool, Bool: false}, nil
		}
	}
	return Null(), apperror.Validation(col.Name, "%v cannot be coerced to a boolean", raw)
}

func validateDate(col ColumnSpec, raw interface{}) (TypedValue, error) {
	switch v := raw.(type) {
	case time.Time:
		return TypedValue{Kind: KindDate, Date: v.UTC()}, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return TypedValue{Kind: KindDate, Date: t.UTC()}, nil
			}
		}
		// The validation error carries the literal offending string.
		return Null(), apperror.Validation(col.Name, "%q is not a valid date", v)
	default:
		return Null(), apperror.Validation(col.Name, "expected a date string, got %T", raw)
	}
}

func validateReference(col ColumnSpec, raw interface{}) (TypedValue, error) {
	var id int64
	switch v := raw.(type) {
	case int64:
		id = v
	case int:
		id = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return Null(), apperror.Validation(col.Name, "reference must be an integer")
		}
		id = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return Null(), apperror.Validation(col.Name, "%q is not an integer reference", v.String())
		}
		id = parsed
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Null(), apperror.Validation(col.Name, "%q is not an integer reference", v)
		}
		id = parsed
	default:
		return Null(), apperror.Validation(col.Name, "expected an integer reference, got %T", raw)
	}
	if id <= 0 {
		return Null(), apperror.Validation(col.Name, "reference must be a positive row id")
	}
	// Existence of the referenced row is checked by the row store.
	return TypedValue{Kind: KindRef, Ref: id}, nil
}

func validateCustomArray(col ColumnSpec, raw interface{}) (TypedValue, error) {
	s, ok := raw.(string)
	if !ok {
		return Null(), apperror.Validation(col.Name, "expected a string option, got %T", raw)
	}
	for _, opt := range col.CustomOptions {
		if opt == s {
			return TypedValue{Kind: KindEnum, Text: s}, nil
		}
	}
	return Null(), apperror.Validation(col.Name, "%q is not one of the allowed options %v", s, col.CustomOptions)
}

// FormatForDisplay is a convenience for logging typed values.
func FormatForDisplay(v TypedValue) string {
	return fmt.Sprintf("%v", v.Format())
}
