package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var created = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type stubSource struct {
	customers []domain.Customer
	products  []domain.Product
	orders    []domain.Order
	links     map[int64][]domain.Product
	pages     []repository.Page
}

func paginate[T any](items []T, page repository.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}

func (s *stubSource) ListCustomers(_ context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Customer], error) {
	if _, err := filtersets.Customer.Bind(req); err != nil {
		return crm.Listing[domain.Customer]{}, err
	}
	s.pages = append(s.pages, page)
	return crm.Listing[domain.Customer]{Items: paginate(s.customers, page), TotalCount: len(s.customers), Offset: page.Offset}, nil
}

func (s *stubSource) ListProducts(_ context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Product], error) {
	if _, err := filtersets.Product.Bind(req); err != nil {
		return crm.Listing[domain.Product]{}, err
	}
	s.pages = append(s.pages, page)
	return crm.Listing[domain.Product]{Items: paginate(s.products, page), TotalCount: len(s.products), Offset: page.Offset}, nil
}

func (s *stubSource) ListOrders(_ context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Order], error) {
	if _, err := filtersets.Order.Bind(req); err != nil {
		return crm.Listing[domain.Order]{}, err
	}
	s.pages = append(s.pages, page)
	return crm.Listing[domain.Order]{Items: paginate(s.orders, page), TotalCount: len(s.orders), Offset: page.Offset}, nil
}

func (s *stubSource) CustomersByID(_ context.Context, ids []int64) (map[int64]domain.Customer, error) {
	out := map[int64]domain.Customer{}
	for _, c := range s.customers {
		for _, id := range ids {
			if c.ID == id {
				out[id] = c
			}
		}
	}
	return out, nil
}

func (s *stubSource) ProductsForOrders(_ context.Context, orderIDs []int64) (map[int64][]domain.Product, error) {
	out := map[int64][]domain.Product{}
	for _, id := range orderIDs {
		out[id] = s.links[id]
	}
	return out, nil
}

func newSource() *stubSource {
	phone := "555-123-4567"
	laptop := domain.Product{ID: 1, Name: "Laptop", Price: decimal.RequireFromString("999.99"), Stock: 10, CreatedAt: created}
	mouse := domain.Product{ID: 2, Name: "Mouse", Price: decimal.RequireFromString("25.5"), Stock: 50, CreatedAt: created}
	return &stubSource{
		customers: []domain.Customer{
			{ID: 1, Name: "Alice", Email: "alice@example.com", Phone: &phone, CreatedAt: created},
			{ID: 2, Name: "Bob", Email: "bob@example.com", CreatedAt: created},
			{ID: 3, Name: "Carol, Jr.", Email: "carol@example.com", CreatedAt: created},
		},
		products: []domain.Product{laptop, mouse},
		orders: []domain.Order{
			{ID: 7, CustomerID: 2, TotalAmount: decimal.RequireFromString("1025.49"), OrderDate: created},
		},
		links: map[int64][]domain.Product{7: {laptop, mouse}},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportCustomersCSVPagesThroughResults(t *testing.T) {
	source := newSource()
	svc := NewService(source, WithPageSize(2))

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), filtersets.CustomerEntity, FormatCSV, filter.Request{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []repository.Page{{Limit: 2}, {Limit: 2, Offset: 2}}, source.pages)

	records := readCSV(t, buf.Bytes())
	assert.Equal(t, [][]string{
		{"ID", "Name", "Email", "Phone", "Created At"},
		{"1", "Alice", "alice@example.com", "555-123-4567", "2024-01-02T03:04:05Z"},
		{"2", "Bob", "bob@example.com", "", "2024-01-02T03:04:05Z"},
		{"3", "Carol, Jr.", "carol@example.com", "", "2024-01-02T03:04:05Z"},
	}, records)
}

func TestExportOrdersIncludeCustomerAndProducts(t *testing.T) {
	svc := NewService(newSource())

	var buf bytes.Buffer
	_, err := svc.Export(context.Background(), filtersets.OrderEntity, FormatCSV, filter.Request{}, &buf)
	require.NoError(t, err)

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 2)
	assert.Equal(t, []string{"7", "Bob", "bob@example.com", "Laptop, Mouse", "1025.49", "2024-01-02T03:04:05Z"}, records[1])
}

func TestExportMaxRows(t *testing.T) {
	svc := NewService(newSource(), WithPageSize(2), WithMaxRows(1))

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), filtersets.CustomerEntity, FormatCSV, filter.Request{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, readCSV(t, buf.Bytes()), 2)
}

func TestExportProductsXLSX(t *testing.T) {
	svc := NewService(newSource())

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), filtersets.ProductEntity, FormatXLSX, filter.Request{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Name", "Price", "Stock", "Created At"}, rows[0])
	assert.Equal(t, "Laptop", rows[1][1])
	assert.Equal(t, "25.5", rows[2][2])
}

func TestExportInvalidFilterWritesNothing(t *testing.T) {
	svc := NewService(newSource())

	var buf bytes.Buffer
	_, err := svc.Export(context.Background(), filtersets.ProductEntity, FormatCSV, filter.Request{"price_gte": "cheap"}, &buf)
	var verr *filter.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, buf.Len())

	_, err = svc.Export(context.Background(), "invoice", FormatCSV, filter.Request{}, &buf)
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, " xlsx ": FormatXLSX} {
		got, err := ParseFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFileName(t *testing.T) {
	svc := NewService(newSource())
	svc.now = func() time.Time { return created }
	assert.Equal(t, "orders-20240102-030405.xlsx", svc.FileName("Orders", FormatXLSX))
	assert.Equal(t, "export-20240102-030405.csv", svc.FileName("../", FormatCSV))
}

func newRouter(svc *Service) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/api/{entity}/export", NewHTTPHandler(svc))
	return r
}

func TestHTTPHandlerStreamsFile(t *testing.T) {
	svc := NewService(newSource())
	svc.now = func() time.Time { return created }

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/customers/export?name=bob", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="customers-20240102-030405.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ID,Name,Email,Phone,Created At\n"))
}

func TestHTTPHandlerErrors(t *testing.T) {
	router := newRouter(NewService(newSource()))

	cases := []struct {
		target string
		status int
		body   string
	}{
		{"/api/invoices/export", http.StatusNotFound, "unknown entity"},
		{"/api/orders/export?format=pdf", http.StatusBadRequest, "unsupported export format"},
		{"/api/products/export?stock_gte=lots", http.StatusBadRequest, `"stock_gte"`},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tc.body)
			assert.Empty(t, rec.Header().Get("Content-Disposition"))
		})
	}
}
