package coltype

import (
	"fmt"
	"time"
)

// ColumnType identifies the value domain of a user-defined column.
type ColumnType string

const (
	TypeText        ColumnType = "text"
	TypeNumber      ColumnType = "number"
	TypeBoolean     ColumnType = "boolean"
	TypeDate        ColumnType = "date"
	TypeReference   ColumnType = "reference"
	TypeCustomArray ColumnType = "customArray"
)

// KnownTypes lists every supported column type in declaration order.
var KnownTypes = []ColumnType{
	TypeText,
	TypeNumber,
	TypeBoolean,
	TypeDate,
	TypeReference,
	TypeCustomArray,
}

// IsKnownType reports whether t is a supported column type.
func IsKnownType(t ColumnType) bool {
	for _, k := range KnownTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Kind tags a TypedValue.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindDate
	KindRef
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindRef:
		return "ref"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// TypedValue is the tagged union produced by the validator. Downstream
// consumers switch on Kind instead of re-inspecting raw input.
type TypedValue struct {
	Kind   Kind
	Text   string
	Number float64
	Bool   bool
	Date   time.Time
	Ref    int64
}

// Null returns the null typed value.
func Null() TypedValue {
	return TypedValue{Kind: KindNull}
}

// IsNull reports whether the value carries no data.
func (v TypedValue) IsNull() bool {
	return v.Kind == KindNull
}

// Format renders the typed value back into its external representation.
// Coercing the result through ValidateValue yields the same TypedValue.
func (v TypedValue) Format() interface{} {
	switch v.Kind {
	case KindText, KindEnum:
		return v.Text
	case KindNumber:
		return v.Number
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Date.UTC().Format(time.RFC3339)
	case KindRef:
		return v.Ref
	default:
		return nil
	}
}

func (v TypedValue) String() string {
	if v.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%s(%v)", v.Kind, v.Format())
}

// ColumnSpec is the subset of a column definition the validator needs.
// The catalog converts its Column model into this shape so the
// validator stays independent of storage concerns.
type ColumnSpec struct {
	ID               string
	Name             string
	Type             ColumnType
	Required         bool
	CustomOptions    []string
	ReferenceTableID string
}
