package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalled(m graphql.Marshaler) string {
	var buf bytes.Buffer
	m.MarshalGQL(&buf)
	return buf.String()
}

func TestID64(t *testing.T) {
	assert.Equal(t, `"42"`, marshalled(MarshalID64(42)))

	for _, in := range []any{"42", " 42 ", int64(42), 42, json.Number("42")} {
		id, err := UnmarshalID64(in)
		require.NoError(t, err, "%v", in)
		assert.Equal(t, int64(42), id)
	}

	for _, in := range []any{"abc", "0", -1, 4.2, nil} {
		_, err := UnmarshalID64(in)
		var serr *ScalarError
		require.True(t, errors.As(err, &serr), "%v", in)
		assert.Equal(t, "ID", serr.Scalar)
	}
}

func TestDateTime(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, `"2024-01-02T02:04:05Z"`, marshalled(MarshalDateTime(at)))

	parsed, err := UnmarshalDateTime("2024-01-02T02:04:05Z")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))

	day, err := UnmarshalDateTime("2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, 30, day.Day())

	_, err = UnmarshalDateTime("yesterday")
	assert.Error(t, err)
	_, err = UnmarshalDateTime(20240630)
	assert.Error(t, err)
}

func TestDecimal(t *testing.T) {
	assert.Equal(t, `"25.50"`, marshalled(MarshalDecimal(decimal.RequireFromString("25.5"))))

	for _, in := range []any{"25.5", json.Number("25.5"), 25.5} {
		d, err := UnmarshalDecimal(in)
		require.NoError(t, err, "%v", in)
		assert.True(t, d.Equal(decimal.RequireFromString("25.5")), "%v", in)
	}
	d, err := UnmarshalDecimal(int64(7))
	require.NoError(t, err)
	assert.Equal(t, "7", d.String())

	_, err = UnmarshalDecimal("cheap")
	var serr *ScalarError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Decimal", serr.Scalar)
	assert.EqualError(t, err, "invalid Decimal cheap")
}
