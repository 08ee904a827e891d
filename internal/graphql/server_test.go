package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/middleware"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var created = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type stubStore struct {
	mu        sync.Mutex
	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	orders    []domain.Order
	links     map[int64][]int64

	customerBatches [][]int64
	productBatches  [][]int64
	lastQuery       filter.Query
	lastPage        repository.Page
}

func newStubStore() *stubStore {
	phone := "+1234567890"
	s := &stubStore{
		customers: map[int64]domain.Customer{
			1: {ID: 1, Name: "Alice", Email: "alice@example.com", Phone: &phone, CreatedAt: created, UpdatedAt: created},
			2: {ID: 2, Name: "Bob", Email: "bob@example.com", CreatedAt: created, UpdatedAt: created},
		},
		products: map[int64]domain.Product{
			10: {ID: 10, Name: "Laptop", Price: decimal.RequireFromString("999.99"), Stock: 10, CreatedAt: created, UpdatedAt: created},
			11: {ID: 11, Name: "Mouse", Price: decimal.RequireFromString("25.5"), Stock: 50, CreatedAt: created, UpdatedAt: created},
		},
		links: map[int64][]int64{100: {10, 11}, 101: {11}},
	}
	s.orders = []domain.Order{
		{ID: 100, CustomerID: 1, TotalAmount: decimal.RequireFromString("1025.49"), OrderDate: created, CreatedAt: created, UpdatedAt: created},
		{ID: 101, CustomerID: 2, TotalAmount: decimal.RequireFromString("25.5"), OrderDate: created, CreatedAt: created, UpdatedAt: created},
	}
	return s
}

func (s *stubStore) Customers() repository.CustomerRepository { return stubCustomers{s} }
func (s *stubStore) Products() repository.ProductRepository   { return stubProducts{s} }
func (s *stubStore) Orders() repository.OrderRepository       { return stubOrders{s} }

func (s *stubStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

type stubCustomers struct{ s *stubStore }

func (r stubCustomers) Create(_ context.Context, c domain.Customer) (domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = int64(len(r.s.customers) + 1)
	r.s.customers[c.ID] = c
	return c, nil
}

func (r stubCustomers) GetByID(_ context.Context, id int64) (domain.Customer, error) {
	c, ok := r.s.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}
	return c, nil
}

func (r stubCustomers) GetByIDs(_ context.Context, ids []int64) ([]domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.customerBatches = append(r.s.customerBatches, ids)
	var out []domain.Customer
	for _, id := range ids {
		if c, ok := r.s.customers[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r stubCustomers) GetByEmail(_ context.Context, email string) (domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return domain.Customer{}, domain.ErrNotFound
}

func (r stubCustomers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r stubCustomers) Find(_ context.Context, q filter.Query, page repository.Page) ([]domain.Customer, int, error) {
	r.s.lastQuery, r.s.lastPage = q, page
	return []domain.Customer{r.s.customers[1], r.s.customers[2]}, 2, nil
}

type stubProducts struct{ s *stubStore }

func (r stubProducts) Create(_ context.Context, p domain.Product) (domain.Product, error) {
	p.ID = 99
	return p, nil
}

func (r stubProducts) GetByID(_ context.Context, id int64) (domain.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (r stubProducts) GetByIDs(_ context.Context, ids []int64) ([]domain.Product, error) {
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r stubProducts) GetByName(context.Context, string) (domain.Product, error) {
	return domain.Product{}, domain.ErrNotFound
}

func (r stubProducts) ByOrderIDs(_ context.Context, orderIDs []int64) (map[int64][]domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.productBatches = append(r.s.productBatches, orderIDs)
	out := map[int64][]domain.Product{}
	for _, oid := range orderIDs {
		for _, pid := range r.s.links[oid] {
			out[oid] = append(out[oid], r.s.products[pid])
		}
	}
	return out, nil
}

func (r stubProducts) Find(_ context.Context, q filter.Query, page repository.Page) ([]domain.Product, int, error) {
	r.s.lastQuery, r.s.lastPage = q, page
	return []domain.Product{r.s.products[10]}, 3, nil
}

type stubOrders struct{ s *stubStore }

func (r stubOrders) Create(_ context.Context, o domain.Order, productIDs []int64) (domain.Order, error) {
	o.ID = 500
	r.s.links[o.ID] = productIDs
	return o, nil
}

func (r stubOrders) GetByID(_ context.Context, id int64) (domain.Order, error) {
	for _, o := range r.s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (r stubOrders) Count(context.Context) (int, error) { return len(r.s.orders), nil }

func (r stubOrders) Find(_ context.Context, q filter.Query, page repository.Page) ([]domain.Order, int, error) {
	r.s.lastQuery, r.s.lastPage = q, page
	return r.s.orders, len(r.s.orders), nil
}

func newTestServer(t *testing.T) (http.Handler, *stubStore) {
	t.Helper()
	store := newStubStore()
	svc := crm.NewService(store, nil, nil)
	srv := NewServer(NewResolver(svc, store), zap.NewNop())
	return middleware.DataLoaderMiddleware(store)(srv), store
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Path       []any          `json:"path"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func post(t *testing.T, h http.Handler, query string, vars map[string]any) (int, gqlResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)
	rec := serve(h, postRequest(string(body)))
	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestHelloQuery(t *testing.T) {
	h, _ := newTestServer(t)
	code, resp := post(t, h, `{ hello }`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"hello":"Hello, GraphQL!"}`, string(resp.Data))
}

func TestAllOrdersBatchesRelations(t *testing.T) {
	h, store := newTestServer(t)
	query := `
query Orders($name: String) {
  allOrders(filter: {customerName: $name, productName: "o"}, pagination: {limit: 5}) {
    totalCount
    pageInfo { hasNextPage hasPreviousPage totalCount }
    edges {
      node {
        __typename
        id
        total: totalAmount
        customer { ...CustomerParts }
        products { name price }
      }
    }
  }
}
fragment CustomerParts on Customer { name phone }`

	code, resp := post(t, h, query, map[string]any{"name": "ali"})
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"allOrders":{
		"totalCount":2,
		"pageInfo":{"hasNextPage":false,"hasPreviousPage":false,"totalCount":2},
		"edges":[
			{"node":{"__typename":"Order","id":"100","total":"1025.49",
				"customer":{"name":"Alice","phone":"+1234567890"},
				"products":[{"name":"Laptop","price":"999.99"},{"name":"Mouse","price":"25.50"}]}},
			{"node":{"__typename":"Order","id":"101","total":"25.50",
				"customer":{"name":"Bob","phone":null},
				"products":[{"name":"Mouse","price":"25.50"}]}}
		]}}`, string(resp.Data))

	assert.Len(t, store.customerBatches, 1)
	assert.ElementsMatch(t, []int64{1, 2}, store.customerBatches[0])
	assert.Len(t, store.productBatches, 1)
	assert.Equal(t, 2, store.lastQuery.Conditions())
	assert.True(t, store.lastQuery.IsDistinct())
	assert.Equal(t, repository.Page{Limit: 5}, store.lastPage)
}

func TestResponseKeepsSelectionOrder(t *testing.T) {
	h, _ := newTestServer(t)
	rec := serve(h, postRequest(`{"query":"{ customer(id: 1) { email name id } }"}`))
	assert.Equal(t, `{"data":{"customer":{"email":"alice@example.com","name":"Alice","id":"1"}}}`, rec.Body.String())
}

func TestInvalidFilterValueIsBadUserInput(t *testing.T) {
	h, _ := newTestServer(t)
	code, resp := post(t, h, `{ allProducts(filter: {priceGte: "cheap", name: "lap"}) { totalCount } }`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `null`, string(resp.Data))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []any{"allProducts", "filter", "priceGte"}, resp.Errors[0].Path)
	assert.Equal(t, "invalid Decimal cheap", resp.Errors[0].Message)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])
	assert.Equal(t, []any{"priceGte"}, resp.Errors[0].Extensions["filters"])
}

func TestInvalidVariableFilterValueIsBadUserInput(t *testing.T) {
	h, _ := newTestServer(t)
	_, resp := post(t, h, `query($since: DateTime) { allCustomers(filter: {createdAtGte: $since}) { totalCount } }`,
		map[string]any{"since": "last week"})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])
	assert.Equal(t, []any{"createdAtGte"}, resp.Errors[0].Extensions["filters"])
}

func TestInvalidIDIsBadUserInput(t *testing.T) {
	h, _ := newTestServer(t)
	_, resp := post(t, h, `{ customer(id: "abc") { id } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []any{"customer", "id"}, resp.Errors[0].Path)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])
	assert.NotContains(t, resp.Errors[0].Extensions, "filters")
}

func TestPaginationDefaultsAndBounds(t *testing.T) {
	h, store := newTestServer(t)

	_, resp := post(t, h, `{ allProducts { pageInfo { hasNextPage } } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, repository.Page{Limit: 10}, store.lastPage)
	assert.JSONEq(t, `{"allProducts":{"pageInfo":{"hasNextPage":true}}}`, string(resp.Data))

	_, resp = post(t, h, `{ allProducts(pagination: {limit: 1000, offset: 2}) { totalCount } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, repository.Page{Limit: 100, Offset: 2}, store.lastPage)

	_, resp = post(t, h, `{ allProducts(pagination: {offset: -1}) { totalCount } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []any{"allProducts"}, resp.Errors[0].Path)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])
}

func TestSingleLookupReturnsNullWhenMissing(t *testing.T) {
	h, _ := newTestServer(t)
	_, resp := post(t, h, `{ customer(id: "42") { id } product(id: 10) { name stock } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"customer":null,"product":{"name":"Laptop","stock":10}}`, string(resp.Data))
}

func TestCreateCustomerMutation(t *testing.T) {
	h, _ := newTestServer(t)
	mutation := `mutation Create($input: CustomerInput!) {
  createCustomer(input: $input) { customer { name email } message errors }
}`

	_, resp := post(t, h, mutation, map[string]any{"input": map[string]any{"name": "Carol", "email": "carol@example.com", "phone": "123-456-7890"}})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"createCustomer":{"customer":{"name":"Carol","email":"carol@example.com"},"message":"Customer created successfully","errors":[]}}`, string(resp.Data))

	_, resp = post(t, h, mutation, map[string]any{"input": map[string]any{"name": "Al", "email": "alice@example.com", "phone": "nope"}})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"createCustomer":{"customer":null,"message":null,"errors":["Email already exists","Invalid phone format"]}}`, string(resp.Data))
}

func TestBulkCreateCustomersMutation(t *testing.T) {
	h, _ := newTestServer(t)
	_, resp := post(t, h, `mutation {
  bulkCreateCustomers(input: [
    {name: "Dan", email: "dan@example.com"},
    {name: "Bob Two", email: "bob@example.com"}
  ]) { customers { name } errors }
}`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"bulkCreateCustomers":{"customers":[{"name":"Dan"}],"errors":["Customer 2: Email already exists"]}}`, string(resp.Data))
}

func TestCreateProductAndOrderMutations(t *testing.T) {
	h, _ := newTestServer(t)

	_, resp := post(t, h, `mutation { createProduct(input: {name: "Cable", price: "9.5"}) { product { name price stock } message } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"createProduct":{"product":{"name":"Cable","price":"9.50","stock":0},"message":"Product created successfully"}}`, string(resp.Data))

	_, resp = post(t, h, `mutation { createProduct(input: {name: "Free", price: 0, stock: -2}) { product { id } errors } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"createProduct":{"product":null,"errors":["Price must be positive","Stock cannot be negative"]}}`, string(resp.Data))

	_, resp = post(t, h, `mutation($ids: [ID!]!) {
  createOrder(input: {customerId: 1, productIds: $ids, orderDate: "2024-05-01T10:00:00Z"}) {
    order { totalAmount orderDate customer { name } products { name } }
    message
  }
}`, map[string]any{"ids": []any{"10", "11", "10"}})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"createOrder":{"order":{"totalAmount":"1025.49","orderDate":"2024-05-01T10:00:00Z",
		"customer":{"name":"Alice"},"products":[{"name":"Laptop"},{"name":"Mouse"}]},
		"message":"Order created successfully"}}`, string(resp.Data))

	_, resp = post(t, h, `mutation { createOrder(input: {customerId: 77, productIds: [10]}) { order { id } errors } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"createOrder":{"order":null,"errors":["Customer not found"]}}`, string(resp.Data))
}

func TestRequestErrors(t *testing.T) {
	h, _ := newTestServer(t)

	code, resp := post(t, h, `{ nope }`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.NotEmpty(t, resp.Errors)
	assert.JSONEq(t, `null`, string(resp.Data))

	q := url.Values{"query": {`mutation { createProduct(input: {name: "X", price: 1}) { message } }`}}
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/query?"+q.Encode(), nil))
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)

	rec = serve(h, postRequest("not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodDelete, "/query", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodOptions, "/query", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OPTIONS, GET, POST", rec.Header().Get("Allow"))
}

func TestGetQueryWithVariables(t *testing.T) {
	h, _ := newTestServer(t)
	q := url.Values{
		"query":     {`query($id: ID!) { product(id: $id) { name } }`},
		"variables": {`{"id": 11}`},
	}
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/query?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"product":{"name":"Mouse"}}}`, rec.Body.String())
}

func TestIntrospectionServesSchema(t *testing.T) {
	h, _ := newTestServer(t)
	_, resp := post(t, h, `{ __schema { queryType { name } mutationType { name } types { name } } }`, nil)
	require.Empty(t, resp.Errors)

	var data struct {
		Schema struct {
			QueryType    struct{ Name string } `json:"queryType"`
			MutationType struct{ Name string } `json:"mutationType"`
			Types        []struct{ Name string } `json:"types"`
		} `json:"__schema"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "Query", data.Schema.QueryType.Name)
	assert.Equal(t, "Mutation", data.Schema.MutationType.Name)

	names := make([]string, len(data.Schema.Types))
	for i, typ := range data.Schema.Types {
		names[i] = typ.Name
	}
	assert.Subset(t, names, []string{"Customer", "Product", "Order", "OrderFilter", "Decimal", "DateTime"})

	_, resp = post(t, h, `{ __type(name: "ProductFilter") { kind inputFields { name } } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Contains(t, string(resp.Data), `"kind":"INPUT_OBJECT"`)
	assert.Contains(t, string(resp.Data), `{"name":"lowStock"}`)
}

func TestSkipAndInclude(t *testing.T) {
	h, _ := newTestServer(t)
	_, resp := post(t, h, `query($on: Boolean!) { hello @include(if: $on) c: customer(id: 2) @skip(if: $on) { id } }`, map[string]any{"on": true})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"hello":"Hello, GraphQL!"}`, string(resp.Data))
}
