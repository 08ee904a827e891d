package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a purchase by one customer of one or more products
type Order struct {
	ID          int64           `json:"id"`
	CustomerID  int64           `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	OrderDate   time.Time       `json:"orderDate"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewOrder creates an unsaved order whose total is the sum of the product
// prices. A zero orderDate means now.
func NewOrder(customerID int64, products []Product, orderDate time.Time) Order {
	now := time.Now().UTC()
	if orderDate.IsZero() {
		orderDate = now
	}
	return Order{
		CustomerID:  customerID,
		TotalAmount: OrderTotal(products),
		OrderDate:   orderDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// OrderTotal sums product prices.
func OrderTotal(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

// OrderInput carries the fields accepted when creating an order
type OrderInput struct {
	CustomerID int64      `json:"customerId"`
	ProductIDs []int64    `json:"productIds"`
	OrderDate  *time.Time `json:"orderDate,omitempty"`
}
