package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService validates requests against the real filter sets and returns
// canned rows.
type stubService struct {
	lastReq  filter.Request
	lastPage repository.Page
	failWith error
}

func listing[T any](s *stubService, spec *filter.Spec, req filter.Request, page repository.Page, items []T) (crm.Listing[T], error) {
	s.lastReq, s.lastPage = req, page
	if s.failWith != nil {
		return crm.Listing[T]{}, s.failWith
	}
	if _, err := spec.Bind(req); err != nil {
		return crm.Listing[T]{}, err
	}
	return crm.Listing[T]{Items: items, TotalCount: 25, Offset: page.Offset}, nil
}

func (s *stubService) ListCustomers(_ context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Customer], error) {
	return listing(s, filtersets.Customer, req, page, []domain.Customer{{ID: 1, Name: "Alice", Email: "alice@example.com"}})
}

func (s *stubService) ListProducts(_ context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Product], error) {
	return listing(s, filtersets.Product, req, page, []domain.Product{{ID: 2, Name: "Mouse", Price: decimal.RequireFromString("25.50"), Stock: 5}})
}

func (s *stubService) ListOrders(_ context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Order], error) {
	return listing(s, filtersets.Order, req, page, []domain.Order{})
}

func (s *stubService) Customer(_ context.Context, id int64) (*domain.Customer, error) {
	if id != 1 {
		return nil, nil
	}
	return &domain.Customer{ID: 1, Name: "Alice", Email: "alice@example.com"}, nil
}

func (s *stubService) Product(context.Context, int64) (*domain.Product, error) {
	return nil, nil
}

func (s *stubService) Order(context.Context, int64) (*domain.Order, error) {
	return nil, s.failWith
}

func serve(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func newTestRouter(svc Service, opts Options) *mux.Router {
	r := mux.NewRouter()
	NewRouter(r, svc, opts)
	return r
}

func TestListBuildsFilterRequestFromQuery(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, Options{})

	rec, body := serve(t, router, http.MethodGet, "/api/products?name=mou&low_stock=true&limit=5&offset=10&stock=1&stock=3")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, filter.Request{"name": "mou", "low_stock": "true", "stock": []string{"1", "3"}}, svc.lastReq)
	assert.Equal(t, repository.Page{Limit: 5, Offset: 10}, svc.lastPage)
	assert.Equal(t, float64(25), body["totalCount"])
	assert.Equal(t, float64(5), body["limit"])
	assert.Equal(t, float64(10), body["offset"])
	assert.Equal(t, true, body["hasNextPage"])

	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Mouse", items[0].(map[string]any)["name"])
}

func TestListPagination(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, Options{})

	rec, _ := serve(t, router, http.MethodGet, "/api/customers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.Page{Limit: defaultLimit}, svc.lastPage)

	rec, _ = serve(t, router, http.MethodGet, "/api/customers?limit=1000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxLimit, svc.lastPage.Limit)

	for _, target := range []string{"/api/customers?limit=0", "/api/customers?limit=x", "/api/customers?offset=-1"} {
		rec, body := serve(t, router, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestListEmptyResultIsArray(t *testing.T) {
	rec, body := serve(t, newTestRouter(&stubService{}, Options{}), http.MethodGet, "/api/orders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["items"])
	assert.Equal(t, false, body["hasNextPage"])
}

func TestListRejectsInvalidFilterValues(t *testing.T) {
	rec, body := serve(t, newTestRouter(&stubService{}, Options{}), http.MethodGet, "/api/orders?total_amount_gte=abc&order_date_lte=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []any{"total_amount_gte", "order_date_lte"}, body["filters"])
	assert.Contains(t, body["error"], "invalid order filters")
}

func TestListUnknownEntityAndServiceFailure(t *testing.T) {
	router := newTestRouter(&stubService{failWith: errors.New("db down")}, Options{})

	rec, _ := serve(t, router, http.MethodGet, "/api/invoices")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := serve(t, router, http.MethodGet, "/api/customers")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body["error"])
}

func TestGetByID(t *testing.T) {
	router := newTestRouter(&stubService{}, Options{})

	rec, body := serve(t, router, http.MethodGet, "/api/customers/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", body["email"])

	rec, body = serve(t, router, http.MethodGet, "/api/customers/2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "customer not found", body["error"])

	rec, _ = serve(t, router, http.MethodGet, "/api/products/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, router, http.MethodGet, "/api/customers/1/extra")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFiltersEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubService{}, Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/filters", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body filtersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Entities[filtersets.ProductEntity], filterDescription{Name: "low_stock", Type: "boolean"})
	assert.Contains(t, body.Entities[filtersets.OrderEntity], filterDescription{Name: "product_id", Type: "integer"})
	assert.Len(t, body.Entities[filtersets.CustomerEntity], 5)
	assert.Contains(t, body.Encoding, "%2B")
}

func TestListDecodesPercentEncodedPlus(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, Options{})

	rec, _ := serve(t, router, http.MethodGet, "/api/customers?phone_pattern=%2B1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, filter.Request{"phone_pattern": "+1"}, svc.lastReq)

	rec, _ = serve(t, router, http.MethodGet, "/api/customers?phone_pattern=+1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, filter.Request{"phone_pattern": " 1"}, svc.lastReq)
}

func TestOptionalEndpointsAreMounted(t *testing.T) {
	called := map[string]string{}
	record := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called[name] = mux.Vars(r)["entity"]
			w.WriteHeader(http.StatusNoContent)
		})
	}
	router := newTestRouter(&stubService{}, Options{Export: record("export"), Import: record("import")})

	rec, _ := serve(t, router, http.MethodGet, "/api/orders/export?format=xlsx")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = serve(t, router, http.MethodPost, "/api/customers/import")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, map[string]string{"export": "orders", "import": ""}, called)

	rec, _ = serve(t, router, http.MethodPost, "/api/customers")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
