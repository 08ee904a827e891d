package filter

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Request maps filter names to raw values as they arrive from a transport:
// strings from query strings, numbers and booleans from JSON, lists for
// repeated parameters.
type Request map[string]any

// Names returns the request keys in sorted order.
func (r Request) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FromValues builds a request from URL query values. A parameter given once
// becomes a string and a repeated one a []string. Names in skip are left out.
func FromValues(values url.Values, skip ...string) Request {
	req := make(Request, len(values))
	for name, vals := range values {
		if len(vals) == 0 || slices.Contains(skip, name) {
			continue
		}
		if len(vals) == 1 {
			req[name] = vals[0]
			continue
		}
		req[name] = append([]string(nil), vals...)
	}
	return req
}

// isEmpty reports values that count as "not supplied".
func isEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	case []any:
		for _, item := range v {
			if !isEmpty(item) {
				return false
			}
		}
		return true
	}
	return false
}

// coerce converts raw into the Go type used for columns of type t.
func coerce(t ColumnType, raw any) (any, error) {
	if s, ok := raw.(*string); ok {
		raw = *s
	}
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}

	switch t {
	case TypeText:
		return cast.ToStringE(raw)
	case TypeInteger:
		return coerceInteger(raw)
	case TypeDecimal:
		return coerceDecimal(raw)
	case TypeTimestamp:
		return coerceTimestamp(raw)
	case TypeBoolean:
		if s, ok := raw.(string); ok {
			raw = strings.ToLower(s)
		}
		return cast.ToBoolE(raw)
	}
	return nil, fmt.Errorf("unsupported column type %s", t)
}

func coerceInteger(raw any) (int64, error) {
	var d decimal.Decimal
	switch v := raw.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return 0, err
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case decimal.Decimal:
		d = v
	case bool:
		return 0, fmt.Errorf("boolean %v is not an integer", v)
	default:
		return cast.ToInt64E(raw)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not a whole number", d.String())
	}
	return d.IntPart(), nil
}

func coerceDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case bool:
		return decimal.Decimal{}, fmt.Errorf("boolean %v is not a number", v)
	}
	n, err := cast.ToInt64E(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(n), nil
}

func coerceTimestamp(raw any) (time.Time, error) {
	switch raw.(type) {
	case string, time.Time, *time.Time:
		return cast.ToTimeE(raw)
	}
	return time.Time{}, fmt.Errorf("%T is not a timestamp", raw)
}

// coerceList splits comma separated strings and coerces each item, dropping
// blank items.
func coerceList(t ColumnType, raw any) ([]any, error) {
	var items []any
	switch v := raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			items = append(items, part)
		}
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []any:
		items = v
	default:
		items = []any{raw}
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		if isEmpty(item) {
			continue
		}
		value, err := coerce(t, item)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}
