package filter

import "fmt"

// Operator is a comparison applied between a column and a filter value.
type Operator string

const (
	OpEq         Operator = "eq"
	OpExact      Operator = "exact"
	OpIContains  Operator = "icontains"
	OpStartsWith Operator = "startswith"
	OpGte        Operator = "gte"
	OpLte        Operator = "lte"
	OpLt         Operator = "lt"
	OpIn         Operator = "in"
)

// ColumnType is the scalar type of a column, and therefore the type a filter
// value is coerced to before it reaches the query.
type ColumnType int

const (
	TypeText ColumnType = iota + 1
	TypeInteger
	TypeDecimal
	TypeTimestamp
	TypeBoolean
)

func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeTimestamp:
		return "timestamp"
	case TypeBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpExact, OpIContains, OpStartsWith, OpGte, OpLte, OpLt, OpIn:
		return true
	}
	return false
}

// Accepts reports whether op can compare a column of type t.
func (op Operator) Accepts(t ColumnType) bool {
	switch op {
	case OpIContains, OpStartsWith:
		return t == TypeText
	case OpGte, OpLte, OpLt:
		return t == TypeInteger || t == TypeDecimal || t == TypeTimestamp || t == TypeText
	case OpEq, OpExact, OpIn:
		return t >= TypeText && t <= TypeBoolean
	}
	return false
}
