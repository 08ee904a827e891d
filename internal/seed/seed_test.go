package seed

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	customers []domain.Customer
	products  []domain.Product
	orders    []domain.Order
	links     map[int64][]int64
	failCount error
}

func newMemStore() *memStore {
	return &memStore{links: map[int64][]int64{}}
}

func (m *memStore) Customers() repository.CustomerRepository { return memCustomers{m} }
func (m *memStore) Products() repository.ProductRepository   { return memProducts{m} }
func (m *memStore) Orders() repository.OrderRepository       { return memOrders{m} }

func (m *memStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

type memCustomers struct{ m *memStore }

func (r memCustomers) Create(_ context.Context, c domain.Customer) (domain.Customer, error) {
	c.ID = int64(len(r.m.customers) + 1)
	r.m.customers = append(r.m.customers, c)
	return c, nil
}

func (r memCustomers) GetByID(context.Context, int64) (domain.Customer, error) {
	return domain.Customer{}, errors.New("not used")
}

func (r memCustomers) GetByIDs(context.Context, []int64) ([]domain.Customer, error) {
	return nil, errors.New("not used")
}

func (r memCustomers) GetByEmail(_ context.Context, email string) (domain.Customer, error) {
	for _, c := range r.m.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return domain.Customer{}, domain.ErrNotFound
}

func (r memCustomers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r memCustomers) Find(context.Context, filter.Query, repository.Page) ([]domain.Customer, int, error) {
	return r.m.customers, len(r.m.customers), nil
}

type memProducts struct{ m *memStore }

func (r memProducts) Create(_ context.Context, p domain.Product) (domain.Product, error) {
	p.ID = int64(len(r.m.products) + 1)
	r.m.products = append(r.m.products, p)
	return p, nil
}

func (r memProducts) GetByID(context.Context, int64) (domain.Product, error) {
	return domain.Product{}, errors.New("not used")
}

func (r memProducts) GetByIDs(context.Context, []int64) ([]domain.Product, error) {
	return nil, errors.New("not used")
}

func (r memProducts) GetByName(_ context.Context, name string) (domain.Product, error) {
	for _, p := range r.m.products {
		if p.Name == name {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

func (r memProducts) ByOrderIDs(context.Context, []int64) (map[int64][]domain.Product, error) {
	return nil, errors.New("not used")
}

func (r memProducts) Find(context.Context, filter.Query, repository.Page) ([]domain.Product, int, error) {
	return r.m.products, len(r.m.products), nil
}

type memOrders struct{ m *memStore }

func (r memOrders) Create(_ context.Context, o domain.Order, productIDs []int64) (domain.Order, error) {
	o.ID = int64(len(r.m.orders) + 1)
	r.m.orders = append(r.m.orders, o)
	r.m.links[o.ID] = productIDs
	return o, nil
}

func (r memOrders) GetByID(context.Context, int64) (domain.Order, error) {
	return domain.Order{}, errors.New("not used")
}

func (r memOrders) Count(context.Context) (int, error) {
	if r.m.failCount != nil {
		return 0, r.m.failCount
	}
	return len(r.m.orders), nil
}

func (r memOrders) Find(context.Context, filter.Query, repository.Page) ([]domain.Order, int, error) {
	return nil, 0, errors.New("not used")
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	seeder := New(store, nil)
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	seeder.now = func() time.Time { return now }

	first, err := seeder.Run(context.Background(), Options{Orders: 15, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, Result{Customers: 8, Products: 10, Orders: 15}, first)

	second, err := seeder.Run(context.Background(), Options{Orders: 15, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, Result{}, second)
	assert.Len(t, store.customers, 8)
	assert.Len(t, store.orders, 15)

	assert.Nil(t, store.customers[3].Phone, "blank fixture phone is stored as null")
	byID := map[int64]domain.Product{}
	for _, p := range store.products {
		byID[p.ID] = p
	}
	for _, o := range store.orders {
		ids := store.links[o.ID]
		require.GreaterOrEqual(t, len(ids), 1)
		require.LessOrEqual(t, len(ids), 4)

		var products []domain.Product
		for _, id := range ids {
			products = append(products, byID[id])
		}
		assert.True(t, domain.OrderTotal(products).Equal(o.TotalAmount), "order %d total", o.ID)
		assert.False(t, o.OrderDate.After(now))
		assert.False(t, o.OrderDate.Before(now.AddDate(0, 0, -30)))

		sorted := append([]int64(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for i := 1; i < len(sorted); i++ {
			assert.NotEqual(t, sorted[i-1], sorted[i], "products within an order are distinct")
		}
	}
}

func TestRunGeneratesFakeRows(t *testing.T) {
	store := newMemStore()
	res, err := New(store, nil).Run(context.Background(), Options{Fake: 5, Seed: 42})
	require.NoError(t, err)

	assert.Zero(t, res.Orders)
	assert.Greater(t, res.Customers, 8)
	assert.Greater(t, res.Products, 10)
	for _, c := range store.customers[8:] {
		assert.Empty(t, domain.CustomerInput{Name: c.Name, Email: c.Email, Phone: c.Phone}.Validate())
	}
	for _, p := range store.products[10:] {
		assert.True(t, p.Price.IsPositive())
		assert.GreaterOrEqual(t, p.Stock, 0)
	}
}

func TestRunPropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.failCount = errors.New("connection refused")
	_, err := New(store, nil).Run(context.Background(), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.failCount)
}
