package repository

import (
	"context"
	"errors"
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
	customerColumns = []string{"id", "name", "email", "phone", "created_at", "updated_at"}
	customerOrder   = []string{"customers.name ASC", "customers.id ASC"}
)

// customerRepository implements CustomerRepository interface
type customerRepository struct {
	db db.DBTX
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(exec db.DBTX) CustomerRepository {
	return &customerRepository{db: exec}
}

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *customerRepository) selectCustomers() sq.SelectBuilder {
	return psql.Select(qualify(filtersets.Customers, customerColumns)...).From(filtersets.Customers.Name)
}

// Create inserts a customer
func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	query, args, err := psql.Insert(filtersets.Customers.Name).
		Columns("name", "email", "phone", "created_at", "updated_at").
		Values(customer.Name, customer.Email, customer.Phone, customer.CreatedAt, customer.UpdatedAt).
		Suffix("RETURNING " + strings.Join(customerColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to build customer insert: %w", err)
	}

	created, err := scanCustomer(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to create customer: %w", mapWriteError(err))
	}
	return created, nil
}

// GetByID retrieves a customer by ID
func (r *customerRepository) GetByID(ctx context.Context, id int64) (domain.Customer, error) {
	c, err := selectOne(ctx, r.db, r.selectCustomers().Where(sq.Eq{"customers.id": id}), scanCustomer)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return c, nil
}

// GetByIDs retrieves the customers with the given IDs, in no particular order
func (r *customerRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return []domain.Customer{}, nil
	}
	customers, err := selectAll(ctx, r.db, r.selectCustomers().Where(sq.Eq{"customers.id": ids}), scanCustomer)
	if err != nil {
		return nil, fmt.Errorf("failed to get customers by IDs: %w", err)
	}
	return customers, nil
}

// GetByEmail retrieves a customer by exact email
func (r *customerRepository) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	c, err := selectOne(ctx, r.db, r.selectCustomers().Where(sq.Eq{"customers.email": email}), scanCustomer)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to get customer by email: %w", err)
	}
	return c, nil
}

// EmailExists reports whether a customer already uses email
func (r *customerRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find lists customers matching q
func (r *customerRepository) Find(ctx context.Context, q filter.Query, page Page) ([]domain.Customer, int, error) {
	customers, total, err := find(ctx, r.db, q, customerColumns, customerOrder, page, scanCustomer)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, total, nil
}
