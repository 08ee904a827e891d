package filtersets

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rpattn/crmql/internal/filter"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const sqliteSchema = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE products (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	price NUMERIC NOT NULL,
	stock INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	total_amount NUMERIC NOT NULL DEFAULT 0,
	order_date TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE order_products (
	order_id INTEGER NOT NULL REFERENCES orders(id),
	product_id INTEGER NOT NULL REFERENCES products(id),
	PRIMARY KEY (order_id, product_id)
);`

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

type fixture struct {
	db        *sql.DB
	customers map[string]int64
	products  map[string]int64
	orders    map[string]int64
}

func seed(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		db:        openDB(t),
		customers: map[string]int64{},
		products:  map[string]int64{},
		orders:    map[string]int64{},
	}

	customers := []struct {
		name  string
		phone any
		days  int
	}{
		{"Alice", "+1234567890", 0},
		{"Bob", "123-456-7890", 10},
		{"Carol", nil, 20},
		{"Dave", "+1987654321", 30},
		{"Eve", "+44 20 7946 0000", 40},
	}
	for _, c := range customers {
		at := epoch.AddDate(0, 0, c.days)
		res, err := f.db.Exec(`INSERT INTO customers (name, email, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			c.name, c.name+"@example.com", c.phone, at, at)
		require.NoError(t, err)
		f.customers[c.name], err = res.LastInsertId()
		require.NoError(t, err)
	}

	products := []struct {
		name  string
		price string
		stock int
	}{
		{"Laptop", "999.99", 10},
		{"Mouse", "25.50", 5},
		{"Keyboard", "45.00", 15},
		{"Monitor", "100.00", 9},
		{"Dock", "500.00", 0},
		{"Webcam", "500.01", 30},
	}
	for _, p := range products {
		res, err := f.db.Exec(`INSERT INTO products (name, price, stock, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			p.name, decimal.RequireFromString(p.price), p.stock, epoch, epoch)
		require.NoError(t, err)
		f.products[p.name], err = res.LastInsertId()
		require.NoError(t, err)
	}

	orders := []struct {
		key      string
		customer string
		days     int
		items    []string
	}{
		{"alice-1", "Alice", 1, []string{"Laptop", "Mouse"}},
		{"alice-2", "Alice", 5, []string{"Mouse"}},
		{"bob-1", "Bob", 12, []string{"Keyboard", "Monitor", "Mouse"}},
		{"carol-1", "Carol", 25, []string{"Dock"}},
	}
	for _, o := range orders {
		total := decimal.Zero
		for _, item := range o.items {
			var price float64
			require.NoError(t, f.db.QueryRow(`SELECT price FROM products WHERE id = ?`, f.products[item]).Scan(&price))
			total = total.Add(decimal.NewFromFloat(price))
		}
		at := epoch.AddDate(0, 0, o.days)
		res, err := f.db.Exec(`INSERT INTO orders (customer_id, total_amount, order_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			f.customers[o.customer], total, at, at, at)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		f.orders[o.key] = id
		for _, item := range o.items {
			_, err := f.db.Exec(`INSERT INTO order_products (order_id, product_id) VALUES (?, ?)`, id, f.products[item])
			require.NoError(t, err)
		}
	}
	return f
}

// ids runs q and returns the matching primary keys in ascending order.
func ids(t require.TestingT, db *sql.DB, q filter.Query) []int64 {
	pk := q.Table().Qualified(q.Table().PrimaryKey)
	query, args, err := q.OrderBy(pk+" ASC").Select(pk).ToSql()
	require.NoError(t, err)

	rows, err := db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		out = append(out, id)
	}
	require.NoError(t, rows.Err())

	countSQL, countArgs, err := q.Count().ToSql()
	require.NoError(t, err)
	var total int
	require.NoError(t, db.QueryRow(countSQL, countArgs...).Scan(&total))
	require.Equal(t, len(out), total, "count disagrees with rows")
	return out
}

func apply(t require.TestingT, spec *filter.Spec, req filter.Request) filter.Query {
	q, err := filter.Apply(filter.NewQuery(spec.Table()), spec, req)
	require.NoError(t, err)
	return q
}

func pick(m map[string]int64, names ...string) []int64 {
	out := make([]int64, len(names))
	for i, n := range names {
		out[i] = m[n]
	}
	return out
}

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{CustomerEntity, OrderEntity, ProductEntity}, Default.Entities())
	for _, name := range []string{CustomerEntity, ProductEntity, OrderEntity} {
		_, ok := Default.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestEntityForCollection(t *testing.T) {
	for segment, want := range map[string]string{"customers": CustomerEntity, "products": ProductEntity, "orders": OrderEntity} {
		got, ok := EntityForCollection(segment)
		assert.True(t, ok, segment)
		assert.Equal(t, want, got)
	}
	_, ok := EntityForCollection("customer")
	assert.False(t, ok)
}

func TestCustomerFilters(t *testing.T) {
	f := seed(t)

	tests := []struct {
		name string
		req  filter.Request
		want []string
	}{
		{"no filters", filter.Request{}, []string{"Alice", "Bob", "Carol", "Dave", "Eve"}},
		{"name icontains", filter.Request{"name": "AL"}, []string{"Alice"}},
		{"email icontains", filter.Request{"email": "example.com"}, []string{"Alice", "Bob", "Carol", "Dave", "Eve"}},
		{"phone prefix", filter.Request{"phone_pattern": "+1"}, []string{"Alice", "Dave"}},
		{"empty phone prefix", filter.Request{"phone_pattern": ""}, []string{"Alice", "Bob", "Carol", "Dave", "Eve"}},
		{"created range inclusive", filter.Request{
			"created_at_gte": epoch.AddDate(0, 0, 10).Format(time.RFC3339),
			"created_at_lte": epoch.AddDate(0, 0, 30).Format(time.RFC3339),
		}, []string{"Bob", "Carol", "Dave"}},
		{"unknown ignored", filter.Request{"favourite_colour": "blue"}, []string{"Alice", "Bob", "Carol", "Dave", "Eve"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(t, f.db, apply(t, Customer, tc.req))
			assert.Equal(t, pick(f.customers, tc.want...), got)
		})
	}
}

func TestProductFilters(t *testing.T) {
	f := seed(t)

	tests := []struct {
		name string
		req  filter.Request
		want []string
	}{
		{"price range inclusive", filter.Request{"price_gte": "100", "price_lte": 500}, []string{"Monitor", "Dock"}},
		{"stock exact", filter.Request{"stock": "10"}, []string{"Laptop"}},
		{"stock bounds", filter.Request{"stock_gte": 5, "stock_lte": "10"}, []string{"Laptop", "Mouse", "Monitor"}},
		{"low stock", filter.Request{"low_stock": true}, []string{"Mouse", "Monitor", "Dock"}},
		{"low stock from string", filter.Request{"low_stock": "true"}, []string{"Mouse", "Monitor", "Dock"}},
		{"low stock false is a no-op", filter.Request{"low_stock": false}, []string{"Laptop", "Mouse", "Keyboard", "Monitor", "Dock", "Webcam"}},
		{"name and low stock", filter.Request{"name": "o", "low_stock": true}, []string{"Mouse", "Monitor", "Dock"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(t, f.db, apply(t, Product, tc.req))
			assert.Equal(t, pick(f.products, tc.want...), got)
		})
	}
}

func TestOrderFilters(t *testing.T) {
	f := seed(t)

	tests := []struct {
		name string
		req  filter.Request
		want []string
	}{
		{"customer name", filter.Request{"customer_name": "ali"}, []string{"alice-1", "alice-2"}},
		{"product name is deduplicated", filter.Request{"product_name": "o"}, []string{"alice-1", "alice-2", "bob-1", "carol-1"}},
		{"product id", filter.Request{"product_id": f.products["Mouse"]}, []string{"alice-1", "alice-2", "bob-1"}},
		{"product id zero is a no-op", filter.Request{"product_id": 0}, []string{"alice-1", "alice-2", "bob-1", "carol-1"}},
		{"product id and name", filter.Request{"product_id": f.products["Mouse"], "product_name": "lap"}, []string{"alice-1"}},
		{"total range", filter.Request{"total_amount_gte": "25.50", "total_amount_lte": "500"}, []string{"alice-2", "bob-1", "carol-1"}},
		{"order date range", filter.Request{
			"order_date_gte": epoch.AddDate(0, 0, 5).Format(time.RFC3339),
			"order_date_lte": epoch.AddDate(0, 0, 12).Format(time.RFC3339),
		}, []string{"alice-2", "bob-1"}},
		{"customer and product", filter.Request{"customer_name": "bob", "product_id": f.products["Dock"]}, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(t, f.db, apply(t, Order, tc.req))
			assert.Equal(t, pick(f.orders, tc.want...), got)
		})
	}
}

func TestOrderProductJoinSQL(t *testing.T) {
	q := apply(t, Order, filter.Request{"product_id": 3})
	query, args, err := q.Select(Orders.Qualified("id")).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT DISTINCT orders.id FROM orders"+
			" JOIN order_products AS products_1_link ON products_1_link.order_id = orders.id"+
			" JOIN products AS products_1 ON products_1.id = products_1_link.product_id"+
			" WHERE products_1.id = ?",
		query)
	assert.Equal(t, []any{int64(3)}, args)
}

func TestInvalidValuesAreRejected(t *testing.T) {
	_, err := filter.Apply(filter.NewQuery(Products), Product, filter.Request{"price_gte": "lots", "low_stock": "maybe"})
	var verr *filter.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"price_gte", "low_stock"}, verr.Filters())

	_, err = filter.Apply(filter.NewQuery(Orders), Order, filter.Request{"order_date_gte": "not a date"})
	require.ErrorIs(t, err, filter.ErrInvalidFilterValue)
}

func TestLowStockMatchesThreshold(t *testing.T) {
	db := openDB(t)

	rapid.Check(t, func(rt *rapid.T) {
		stocks := rapid.SliceOfN(rapid.IntRange(0, 40), 0, 12).Draw(rt, "stocks")

		_, err := db.Exec(`DELETE FROM products`)
		require.NoError(rt, err)

		var want []int64
		for i, stock := range stocks {
			res, err := db.Exec(`INSERT INTO products (name, price, stock, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				"p", "1.00", stock, epoch, epoch)
			require.NoError(rt, err)
			id, err := res.LastInsertId()
			require.NoError(rt, err)
			if stocks[i] < LowStockThreshold {
				want = append(want, id)
			}
		}

		got := ids(rt, db, apply(rt, Product, filter.Request{"low_stock": true}))
		if want == nil {
			want = []int64{}
		}
		assert.Equal(rt, want, got)

		all := ids(rt, db, apply(rt, Product, filter.Request{"low_stock": false}))
		assert.Len(rt, all, len(stocks))
	})
}
