package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/crmql/internal/db"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var (
	orderColumns = []string{"id", "customer_id", "total_amount", "order_date", "created_at", "updated_at"}
	orderOrder   = []string{"orders.order_date DESC", "orders.id DESC"}
)

// orderRepository implements OrderRepository interface
type orderRepository struct {
	db db.DBTX
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(exec db.DBTX) OrderRepository {
	return &orderRepository{db: exec}
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.TotalAmount, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Create inserts the order row and one link row per product. Callers run it
// inside a transaction.
func (r *orderRepository) Create(ctx context.Context, order domain.Order, productIDs []int64) (domain.Order, error) {
	query, args, err := psql.Insert(filtersets.Orders.Name).
		Columns("customer_id", "total_amount", "order_date", "created_at", "updated_at").
		Values(order.CustomerID, order.TotalAmount, order.OrderDate, order.CreatedAt, order.UpdatedAt).
		Suffix("RETURNING " + strings.Join(orderColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to build order insert: %w", err)
	}

	created, err := scanOrder(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to create order: %w", mapWriteError(err))
	}

	if len(productIDs) == 0 {
		return created, nil
	}

	link := psql.Insert(filtersets.OrderProductsTable).Columns("order_id", "product_id")
	for _, pid := range productIDs {
		link = link.Values(created.ID, pid)
	}
	linkSQL, linkArgs, err := link.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to build order products insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, linkSQL, linkArgs...); err != nil {
		return domain.Order{}, fmt.Errorf("failed to link order products: %w", err)
	}

	return created, nil
}

// GetByID retrieves an order by ID
func (r *orderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	b := psql.Select(qualify(filtersets.Orders, orderColumns)...).
		From(filtersets.Orders.Name).
		Where(sq.Eq{"orders.id": id})
	o, err := selectOne(ctx, r.db, b, scanOrder)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return o, nil
}

// Count returns the number of orders
func (r *orderRepository) Count(ctx context.Context) (int, error) {
	query, args, err := filter.NewQuery(filtersets.Orders).Count().PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build order count: %w", err)
	}
	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// Find lists orders matching q
func (r *orderRepository) Find(ctx context.Context, q filter.Query, page Page) ([]domain.Order, int, error) {
	orders, total, err := find(ctx, r.db, q, orderColumns, orderOrder, page, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}
