package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func TestValidPhone(t *testing.T) {
	valid := []string{"+1234567890", "123-456-7890", "1234567890", "+11234567890123"}
	invalid := []string{"12345", "abc-def-ghij", "+1 234 567 890", "123-4567-890", ""}

	for _, p := range valid {
		assert.True(t, ValidPhone(p), p)
	}
	for _, p := range invalid {
		assert.False(t, ValidPhone(p), p)
	}
}

func TestCustomerInputValidate(t *testing.T) {
	tests := []struct {
		name  string
		input CustomerInput
		want  []string
	}{
		{"valid", CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: strPtr("+1234567890")}, nil},
		{"blank phone is absent", CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: strPtr("  ")}, nil},
		{"bad phone", CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: strPtr("555")}, []string{MsgInvalidPhone}},
		{"missing name", CustomerInput{Email: "a@example.com"}, []string{MsgNameRequired}},
		{"long name", CustomerInput{Name: strings.Repeat("x", 101), Email: "a@example.com"}, []string{MsgNameTooLong}},
		{"bad email", CustomerInput{Name: "A", Email: "nope"}, []string{MsgInvalidEmail}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.input.Validate())
		})
	}
}

func TestProductInputValidate(t *testing.T) {
	ok := ProductInput{Name: "Laptop", Price: decimal.RequireFromString("999.99")}
	assert.Empty(t, ok.Validate())
	assert.Equal(t, 0, ok.StockOrDefault())

	bad := ProductInput{Name: "Laptop", Price: decimal.Zero, Stock: intPtr(-1)}
	assert.Equal(t, []string{MsgPriceNotPositive, MsgNegativeStock}, bad.Validate())
}

func TestNewCustomerNormalizesPhone(t *testing.T) {
	c := NewCustomer(" Bob ", "bob@example.com", strPtr(" "))
	assert.Equal(t, "Bob", c.Name)
	assert.Nil(t, c.Phone)
	assert.Equal(t, "", c.PhoneValue())

	c = NewCustomer("Bob", "bob@example.com", strPtr("123-456-7890"))
	assert.Equal(t, "123-456-7890", c.PhoneValue())
}

func TestNewOrderTotals(t *testing.T) {
	products := []Product{
		NewProduct("Laptop", decimal.RequireFromString("999.99"), 10),
		NewProduct("Mouse", decimal.RequireFromString("25.50"), 50),
	}
	o := NewOrder(1, products, time.Time{})
	assert.True(t, decimal.RequireFromString("1025.49").Equal(o.TotalAmount))
	assert.False(t, o.OrderDate.IsZero())

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, when, NewOrder(1, products, when).OrderDate)
}
