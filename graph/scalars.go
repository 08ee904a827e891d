package graph

//go:generate go run github.com/99designs/gqlgen generate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ScalarError reports a client value that does not parse as a custom scalar.
type ScalarError struct {
	Scalar string
	Value  any
}

func (e *ScalarError) Error() string {
	return fmt.Sprintf("invalid %s %v", e.Scalar, e.Value)
}

// MarshalID64 writes database keys as ID strings.
func MarshalID64(id int64) graphql.Marshaler {
	return graphql.MarshalString(strconv.FormatInt(id, 10))
}

// UnmarshalID64 accepts IDs sent as strings or integers. Keys start at 1.
func UnmarshalID64(v any) (int64, error) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	id, err := graphql.UnmarshalInt64(v)
	if err != nil || id < 1 {
		return 0, &ScalarError{Scalar: "ID", Value: v}
	}
	return id, nil
}

// MarshalDateTime writes timestamps in UTC as RFC 3339.
func MarshalDateTime(t time.Time) graphql.Marshaler {
	return graphql.MarshalString(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalDateTime accepts RFC 3339 and the looser layouts cast understands,
// such as a bare date.
func UnmarshalDateTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, &ScalarError{Scalar: "DateTime", Value: v}
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return time.Time{}, &ScalarError{Scalar: "DateTime", Value: v}
	}
	return t, nil
}

// MarshalDecimal writes amounts as strings with two fraction digits.
func MarshalDecimal(d decimal.Decimal) graphql.Marshaler {
	return graphql.MarshalString(d.StringFixed(2))
}

// UnmarshalDecimal accepts strings and JSON numbers.
func UnmarshalDecimal(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch n := v.(type) {
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(n))
	case json.Number:
		d, err = decimal.NewFromString(n.String())
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case float64:
		d = decimal.NewFromFloat(n)
	default:
		err = fmt.Errorf("%T is not a number", v)
	}
	if err != nil {
		return decimal.Decimal{}, &ScalarError{Scalar: "Decimal", Value: v}
	}
	return d, nil
}
