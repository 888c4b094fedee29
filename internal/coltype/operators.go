package coltype

// Operator is a filter predicate operator.
type Operator string

const (
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpRegex              Operator = "regex"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThan           Operator = "less_than"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpBetween            Operator = "between"
	OpNotBetween         Operator = "not_between"
	OpBefore             Operator = "before"
	OpAfter              Operator = "after"
	OpToday              Operator = "today"
	OpYesterday          Operator = "yesterday"
	OpThisWeek           Operator = "this_week"
	OpLastWeek           Operator = "last_week"
	OpThisMonth          Operator = "this_month"
	OpLastMonth          Operator = "last_month"
	OpThisYear           Operator = "this_year"
	OpLastYear           Operator = "last_year"
)

// operatorTable is the authoritative type/operator compatibility table.
var operatorTable = map[ColumnType][]Operator{
	TypeText: {
		OpContains, OpNotContains, OpEquals, OpNotEquals,
		OpStartsWith, OpEndsWith, OpRegex, OpIsEmpty, OpIsNotEmpty,
	},
	TypeNumber: {
		OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpBetween, OpNotBetween,
		OpIsEmpty, OpIsNotEmpty,
	},
	TypeBoolean: {
		OpEquals, OpNotEquals, OpIsEmpty, OpIsNotEmpty,
	},
	TypeDate: {
		OpEquals, OpNotEquals, OpBefore, OpAfter, OpBetween, OpNotBetween,
		OpToday, OpYesterday, OpThisWeek, OpLastWeek, OpThisMonth,
		OpLastMonth, OpThisYear, OpLastYear, OpIsEmpty, OpIsNotEmpty,
	},
	TypeReference: {
		OpEquals, OpNotEquals, OpIsEmpty, OpIsNotEmpty,
	},
	TypeCustomArray: {
		OpEquals, OpNotEquals, OpIsEmpty, OpIsNotEmpty,
	},
}

// AvailableOperators returns the operators valid for a column type.
func AvailableOperators(t ColumnType) []Operator {
	ops := operatorTable[t]
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

// OperatorAllowed reports whether op may be applied to a column of type t.
func OperatorAllowed(t ColumnType, op Operator) bool {
	for _, o := range operatorTable[t] {
		if o == op {
			return true
		}
	}
	return false
}

// RequiresValue reports whether op needs a primary comparison value.
// Emptiness checks and relative date windows carry no value.
func RequiresValue(op Operator) bool {
	switch op {
	case OpIsEmpty, OpIsNotEmpty,
		OpToday, OpYesterday, OpThisWeek, OpLastWeek,
		OpThisMonth, OpLastMonth, OpThisYear, OpLastYear:
		return false
	}
	return true
}

// RequiresSecondValue reports whether op needs a non-null secondValue.
func RequiresSecondValue(op Operator) bool {
	return op == OpBetween || op == OpNotBetween
}
