package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is an item that can be ordered
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewProduct creates an unsaved product with the price rounded to cents.
func NewProduct(name string, price decimal.Decimal, stock int) Product {
	now := time.Now().UTC()
	return Product{
		Name:      strings.TrimSpace(name),
		Price:     price.Round(2),
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProductInput carries the fields accepted when creating a product. Stock
// defaults to zero when omitted.
type ProductInput struct {
	Name  string          `json:"name" validate:"required,max=100"`
	Price decimal.Decimal `json:"price"`
	Stock *int            `json:"stock,omitempty"`
}

// StockOrDefault returns the requested stock or zero.
func (in ProductInput) StockOrDefault() int {
	if in.Stock == nil {
		return 0
	}
	return *in.Stock
}
