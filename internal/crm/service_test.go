package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps rows in maps. Find ignores the query and records it.
// Like Postgres, a unique violation inside a transaction aborts it until the
// enclosing savepoint rolls back.
type memStore struct {
	customers  map[int64]domain.Customer
	products   map[int64]domain.Product
	orders     map[int64]domain.Order
	links      map[int64][]int64
	nextID     int64
	lastQuery  filter.Query
	txCalls    int
	savepoints int
	failTx     error

	depth   int
	aborted bool
	// racing hides emails from EmailExists, as if another transaction
	// committed them after the check.
	racing map[string]bool
}

var errTxAborted = errors.New("current transaction is aborted")

func newMemStore() *memStore {
	return &memStore{
		customers: map[int64]domain.Customer{},
		products:  map[int64]domain.Product{},
		orders:    map[int64]domain.Order{},
		links:     map[int64][]int64{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) Customers() repository.CustomerRepository { return memCustomers{m} }
func (m *memStore) Products() repository.ProductRepository   { return memProducts{m} }
func (m *memStore) Orders() repository.OrderRepository       { return memOrders{m} }

func (m *memStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if m.depth == 0 {
		m.txCalls++
	} else {
		m.savepoints++
	}
	if m.failTx != nil {
		return m.failTx
	}
	m.depth++
	defer func() { m.depth-- }()
	err := fn(m)
	if err != nil || m.depth == 1 {
		m.aborted = false
	}
	return err
}

type memCustomers struct{ m *memStore }

func (r memCustomers) Create(_ context.Context, c domain.Customer) (domain.Customer, error) {
	if r.m.aborted {
		return domain.Customer{}, errTxAborted
	}
	for _, existing := range r.m.customers {
		if existing.Email == c.Email {
			r.m.aborted = r.m.depth > 0
			return domain.Customer{}, repository.ErrConflict
		}
	}
	c.ID = r.m.id()
	r.m.customers[c.ID] = c
	return c, nil
}

func (r memCustomers) GetByID(_ context.Context, id int64) (domain.Customer, error) {
	c, ok := r.m.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}
	return c, nil
}

func (r memCustomers) GetByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error) {
	var out []domain.Customer
	for _, id := range ids {
		if c, ok := r.m.customers[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
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
	if r.m.aborted {
		return false, errTxAborted
	}
	if r.m.racing[email] {
		return false, nil
	}
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r memCustomers) Find(_ context.Context, q filter.Query, _ repository.Page) ([]domain.Customer, int, error) {
	r.m.lastQuery = q
	var out []domain.Customer
	for _, c := range r.m.customers {
		out = append(out, c)
	}
	return out, len(out), nil
}

type memProducts struct{ m *memStore }

func (r memProducts) Create(_ context.Context, p domain.Product) (domain.Product, error) {
	p.ID = r.m.id()
	r.m.products[p.ID] = p
	return p, nil
}

func (r memProducts) GetByID(_ context.Context, id int64) (domain.Product, error) {
	p, ok := r.m.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (r memProducts) GetByIDs(_ context.Context, ids []int64) ([]domain.Product, error) {
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProducts) GetByName(_ context.Context, name string) (domain.Product, error) {
	for _, p := range r.m.products {
		if p.Name == name {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

func (r memProducts) ByOrderIDs(_ context.Context, orderIDs []int64) (map[int64][]domain.Product, error) {
	out := map[int64][]domain.Product{}
	for _, oid := range orderIDs {
		for _, pid := range r.m.links[oid] {
			out[oid] = append(out[oid], r.m.products[pid])
		}
	}
	return out, nil
}

func (r memProducts) Find(_ context.Context, q filter.Query, _ repository.Page) ([]domain.Product, int, error) {
	r.m.lastQuery = q
	return nil, 0, nil
}

type memOrders struct{ m *memStore }

func (r memOrders) Create(_ context.Context, o domain.Order, productIDs []int64) (domain.Order, error) {
	o.ID = r.m.id()
	r.m.orders[o.ID] = o
	r.m.links[o.ID] = productIDs
	return o, nil
}

func (r memOrders) GetByID(_ context.Context, id int64) (domain.Order, error) {
	o, ok := r.m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (r memOrders) Count(context.Context) (int, error) { return len(r.m.orders), nil }

func (r memOrders) Find(_ context.Context, q filter.Query, page repository.Page) ([]domain.Order, int, error) {
	r.m.lastQuery = q
	var out []domain.Order
	for _, o := range r.m.orders {
		out = append(out, o)
	}
	return out, len(out), nil
}

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T) (*Service, *memStore, *prometheus.Registry) {
	t.Helper()
	store := newMemStore()
	reg := prometheus.NewRegistry()
	return NewService(store, nil, reg), store, reg
}

func TestHello(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.Equal(t, "Hello, GraphQL!", svc.Hello())
}

func TestListAppliesFilters(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListOrders(ctx, filter.Request{"product_name": "lap", "unknown": "x"}, repository.Page{Limit: 5})
	require.NoError(t, err)
	assert.True(t, store.lastQuery.IsDistinct())
	assert.Equal(t, 1, store.lastQuery.Conditions())

	listing, err := svc.ListProducts(ctx, filter.Request{}, repository.Page{})
	require.NoError(t, err)
	assert.NotNil(t, listing.Items)
	assert.Zero(t, listing.TotalCount)
}

func TestListRejectsInvalidValues(t *testing.T) {
	svc, store, reg := newTestService(t)

	_, err := svc.ListProducts(context.Background(), filter.Request{"price_gte": "cheap"}, repository.Page{})
	var verr *filter.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"price_gte"}, verr.Filters())
	assert.Equal(t, filter.Query{}, store.lastQuery)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "crmql_filter_rejections_total", families[0].GetName())
	require.Len(t, families[0].GetMetric(), 1)
	metric := families[0].GetMetric()[0]
	assert.Equal(t, "product", metric.GetLabel()[0].GetValue())
	assert.Equal(t, 1.0, metric.GetCounter().GetValue())
}

func TestListingPageInfo(t *testing.T) {
	l := Listing[int]{Items: []int{1, 2}, TotalCount: 5, Offset: 2}
	assert.True(t, l.HasNextPage())
	assert.True(t, l.HasPreviousPage())

	last := Listing[int]{Items: []int{1}, TotalCount: 5, Offset: 4}
	assert.False(t, last.HasNextPage())

	first := Listing[int]{Items: []int{1}, TotalCount: 1}
	assert.False(t, first.HasPreviousPage())
}

func TestGetByIDReturnsNilWhenMissing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Customer(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, c)

	created, _ := memCustomers{store}.Create(ctx, domain.NewCustomer("Alice", "alice@example.com", nil))
	c, err = svc.Customer(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Alice", c.Name)

	p, err := svc.Product(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, p)

	o, err := svc.Order(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestCreateCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.CreateCustomer(ctx, domain.CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: ptr("+1234567890")})
	require.NoError(t, err)
	require.NotNil(t, out.Customer)
	assert.Equal(t, "Customer created successfully", out.Message)
	assert.Empty(t, out.Errors)
	assert.Equal(t, "+1234567890", out.Customer.PhoneValue())

	dup, err := svc.CreateCustomer(ctx, domain.CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: ptr("12")})
	require.NoError(t, err)
	assert.Nil(t, dup.Customer)
	assert.Equal(t, []string{"Email already exists", "Invalid phone format"}, dup.Errors)

	blank, err := svc.CreateCustomer(ctx, domain.CustomerInput{Name: "Bob", Email: "bob@example.com", Phone: ptr("  ")})
	require.NoError(t, err)
	require.NotNil(t, blank.Customer)
	assert.Nil(t, blank.Customer.Phone)
}

func TestBulkCreateCustomers(t *testing.T) {
	svc, store, _ := newTestService(t)

	out, err := svc.BulkCreateCustomers(context.Background(), []domain.CustomerInput{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com", Phone: ptr("abc")},
		{Name: "Alice Again", Email: "alice@example.com"},
		{Name: "Carol", Email: "carol@example.com", Phone: ptr("123-456-7890")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.txCalls)
	assert.Equal(t, []string{
		"Customer 2: Invalid phone format",
		"Customer 3: Email already exists",
	}, out.Errors)
	require.Len(t, out.Customers, 2)
	assert.Equal(t, "Alice", out.Customers[0].Name)
	assert.Equal(t, "Carol", out.Customers[1].Name)
}

func TestBulkCreateCustomersContinuesAfterInsertConflict(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := memCustomers{store}.Create(ctx, domain.NewCustomer("Racer", "racer@example.com", nil))
	require.NoError(t, err)
	store.racing = map[string]bool{"racer@example.com": true}

	out, err := svc.BulkCreateCustomers(ctx, []domain.CustomerInput{
		{Name: "Dan", Email: "dan@example.com"},
		{Name: "Racer Two", Email: "racer@example.com"},
		{Name: "Erin", Email: "erin@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer 2: Email already exists"}, out.Errors)
	require.Len(t, out.Customers, 2)
	assert.Equal(t, "Dan", out.Customers[0].Name)
	assert.Equal(t, "Erin", out.Customers[1].Name)
	assert.Equal(t, 1, store.txCalls)
	assert.Equal(t, 3, store.savepoints)
	assert.False(t, store.aborted)
}

func TestBulkCreateCustomersRollsBackOnStoreFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.failTx = errors.New("connection reset")

	_, err := svc.BulkCreateCustomers(context.Background(), []domain.CustomerInput{{Name: "A", Email: "a@example.com"}})
	require.Error(t, err)
	assert.Empty(t, store.customers)
}

func TestCreateProduct(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.CreateProduct(ctx, domain.ProductInput{Name: "Laptop", Price: decimal.RequireFromString("999.99")})
	require.NoError(t, err)
	require.NotNil(t, out.Product)
	assert.Equal(t, "Product created successfully", out.Message)
	assert.Equal(t, 0, out.Product.Stock)

	bad, err := svc.CreateProduct(ctx, domain.ProductInput{Name: "Broken", Price: decimal.Zero, Stock: ptr(-1)})
	require.NoError(t, err)
	assert.Nil(t, bad.Product)
	assert.Equal(t, []string{"Price must be positive", "Stock cannot be negative"}, bad.Errors)
}

func TestCreateOrder(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	customer, _ := memCustomers{store}.Create(ctx, domain.NewCustomer("Alice", "alice@example.com", nil))
	laptop, _ := memProducts{store}.Create(ctx, domain.NewProduct("Laptop", decimal.RequireFromString("999.99"), 10))
	mouse, _ := memProducts{store}.Create(ctx, domain.NewProduct("Mouse", decimal.RequireFromString("25.50"), 50))

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := svc.CreateOrder(ctx, domain.OrderInput{
		CustomerID: customer.ID,
		ProductIDs: []int64{laptop.ID, mouse.ID, laptop.ID},
		OrderDate:  &when,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Order)
	assert.Equal(t, "Order created successfully", out.Message)
	assert.Equal(t, "1025.49", out.Order.TotalAmount.StringFixed(2))
	assert.Equal(t, when, out.Order.OrderDate)
	assert.Equal(t, []int64{laptop.ID, mouse.ID}, store.links[out.Order.ID])
	assert.Len(t, out.Products, 2)

	undated, err := svc.CreateOrder(ctx, domain.OrderInput{CustomerID: customer.ID, ProductIDs: []int64{mouse.ID}})
	require.NoError(t, err)
	require.NotNil(t, undated.Order)
	assert.WithinDuration(t, time.Now(), undated.Order.OrderDate, time.Minute)
}

func TestCreateOrderRejections(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	customer, _ := memCustomers{store}.Create(ctx, domain.NewCustomer("Alice", "alice@example.com", nil))
	mouse, _ := memProducts{store}.Create(ctx, domain.NewProduct("Mouse", decimal.RequireFromString("25.50"), 50))

	cases := []struct {
		name string
		in   domain.OrderInput
		want string
	}{
		{"missing customer", domain.OrderInput{CustomerID: 999, ProductIDs: []int64{mouse.ID}}, "Customer not found"},
		{"no products", domain.OrderInput{CustomerID: customer.ID}, "At least one product must be selected"},
		{"unknown product", domain.OrderInput{CustomerID: customer.ID, ProductIDs: []int64{mouse.ID, 999}}, "One or more products not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := svc.CreateOrder(ctx, tc.in)
			require.NoError(t, err)
			assert.Nil(t, out.Order)
			assert.Equal(t, []string{tc.want}, out.Errors)
		})
	}
	assert.Empty(t, store.orders)
}

func TestLookupHelpers(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	alice, _ := memCustomers{store}.Create(ctx, domain.NewCustomer("Alice", "alice@example.com", nil))
	mouse, _ := memProducts{store}.Create(ctx, domain.NewProduct("Mouse", decimal.RequireFromString("25.50"), 50))
	order, err := svc.CreateOrder(ctx, domain.OrderInput{CustomerID: alice.ID, ProductIDs: []int64{mouse.ID}})
	require.NoError(t, err)

	customers, err := svc.CustomersByID(ctx, []int64{alice.ID, alice.ID, 999})
	require.NoError(t, err)
	assert.Len(t, customers, 1)
	assert.Equal(t, "Alice", customers[alice.ID].Name)

	products, err := svc.ProductsForOrders(ctx, []int64{order.Order.ID})
	require.NoError(t, err)
	require.Len(t, products[order.Order.ID], 1)
	assert.Equal(t, "Mouse", products[order.Order.ID][0].Name)

	empty, err := svc.ProductsForOrders(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
