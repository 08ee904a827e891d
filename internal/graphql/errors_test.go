package graphql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rpattn/crmql/internal/filter"

	"github.com/stretchr/testify/assert"
)

func TestErrorPresenter(t *testing.T) {
	ctx := context.Background()

	verr := &filter.ValidationError{Entity: "orders", Errors: []filter.FieldError{
		{Filter: "total_amount_gte", Expected: "decimal", Value: "x"},
		{Filter: "product_id", Expected: "integer", Value: "y"},
	}}
	out := ErrorPresenter(ctx, fmt.Errorf("list orders: %w", verr))
	assert.Equal(t, CodeBadUserInput, out.Extensions["code"])
	assert.Equal(t, []string{"totalAmountGte", "productId"}, out.Extensions["filters"])

	out = ErrorPresenter(ctx, badInput("pagination.limit must be a positive integer"))
	assert.Equal(t, map[string]any{"code": CodeBadUserInput}, out.Extensions)
	assert.Equal(t, "pagination.limit must be a positive integer", out.Message)

	out = ErrorPresenter(ctx, errors.New("connection refused"))
	assert.Nil(t, out.Extensions)

	assert.Nil(t, ErrorPresenter(ctx, nil))
}
