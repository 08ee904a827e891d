package repository

import (
	"context"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
)

// Page bounds a listing. A zero Limit returns every row.
type Page struct {
	Limit  int
	Offset int
}

// CustomerRepository defines the interface for customer operations
type CustomerRepository interface {
	Create(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	GetByID(ctx context.Context, id int64) (domain.Customer, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (domain.Customer, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// Find runs a filtered query ordered by name and returns the page along
	// with the total number of matches.
	Find(ctx context.Context, q filter.Query, page Page) ([]domain.Customer, int, error)
}

// ProductRepository defines the interface for product operations
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	GetByID(ctx context.Context, id int64) (domain.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)
	GetByName(ctx context.Context, name string) (domain.Product, error)
	// ByOrderIDs returns the products of each order, keyed by order ID.
	ByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]domain.Product, error)
	Find(ctx context.Context, q filter.Query, page Page) ([]domain.Product, int, error)
}

// OrderRepository defines the interface for order operations
type OrderRepository interface {
	// Create inserts the order and links its products.
	Create(ctx context.Context, order domain.Order, productIDs []int64) (domain.Order, error)
	GetByID(ctx context.Context, id int64) (domain.Order, error)
	Count(ctx context.Context) (int, error)
	// Find runs a filtered query ordered by most recent order date first.
	Find(ctx context.Context, q filter.Query, page Page) ([]domain.Order, int, error)
}

// Store groups the repositories so they can share a transaction.
type Store interface {
	Customers() CustomerRepository
	Products() ProductRepository
	Orders() OrderRepository
	// WithinTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil. Called on a Store that is
	// already bound, it opens a savepoint instead.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
