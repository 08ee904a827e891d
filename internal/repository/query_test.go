package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestBuildFindOrdersAndPaginates(t *testing.T) {
	q, err := filter.Apply(filter.NewQuery(filtersets.Customers), filtersets.Customer, filter.Request{"name": "al"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	list, count := buildFind(q, customerColumns, customerOrder, Page{Limit: 10, Offset: 20})

	sql, args, err := list.ToSql()
	if err != nil {
		t.Fatalf("list sql: %v", err)
	}
	want := "SELECT customers.id, customers.name, customers.email, customers.phone, customers.created_at, customers.updated_at" +
		` FROM customers WHERE LOWER(customers.name) LIKE $1 ESCAPE '\'` +
		" ORDER BY customers.name ASC, customers.id ASC LIMIT 10 OFFSET 20"
	if sql != want {
		t.Fatalf("unexpected list sql:\n got: %s\nwant: %s", sql, want)
	}
	if len(args) != 1 || args[0] != "%al%" {
		t.Fatalf("unexpected args: %#v", args)
	}

	countSQL, _, err := count.ToSql()
	if err != nil {
		t.Fatalf("count sql: %v", err)
	}
	if countSQL != `SELECT COUNT(*) FROM customers WHERE LOWER(customers.name) LIKE $1 ESCAPE '\'` {
		t.Fatalf("unexpected count sql: %s", countSQL)
	}
}

func TestBuildFindDistinctOrders(t *testing.T) {
	q, err := filter.Apply(filter.NewQuery(filtersets.Orders), filtersets.Order, filter.Request{"product_name": "lap", "customer_name": "bob"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	list, count := buildFind(q, orderColumns, orderOrder, Page{})
	sql, args, err := list.ToSql()
	if err != nil {
		t.Fatalf("list sql: %v", err)
	}
	want := "SELECT DISTINCT orders.id, orders.customer_id, orders.total_amount, orders.order_date, orders.created_at, orders.updated_at" +
		" FROM orders JOIN customers AS customer ON customer.id = orders.customer_id" +
		" JOIN order_products AS products_1_link ON products_1_link.order_id = orders.id" +
		" JOIN products AS products_1 ON products_1.id = products_1_link.product_id" +
		` WHERE LOWER(customer.name) LIKE $1 ESCAPE '\' AND LOWER(products_1.name) LIKE $2 ESCAPE '\'` +
		" ORDER BY orders.order_date DESC, orders.id DESC"
	if sql != want {
		t.Fatalf("unexpected list sql:\n got: %s\nwant: %s", sql, want)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}

	countSQL, _, err := count.ToSql()
	if err != nil {
		t.Fatalf("count sql: %v", err)
	}
	if got := countSQL[:len("SELECT COUNT(DISTINCT orders.id) FROM orders")]; got != "SELECT COUNT(DISTINCT orders.id) FROM orders" {
		t.Fatalf("unexpected count sql: %s", countSQL)
	}
}

func TestMapWriteError(t *testing.T) {
	dup := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "customers_email_key"}
	if err := mapWriteError(fmt.Errorf("insert: %w", dup)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	other := errors.New("boom")
	if err := mapWriteError(other); err != other {
		t.Fatalf("expected passthrough, got %v", err)
	}
}
