// Package rest serves the read-only JSON API under /api along with the
// export and import endpoints.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"
	"github.com/rpattn/crmql/internal/logging"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Service is the part of the CRM service the API reads from.
type Service interface {
	ListCustomers(ctx context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Customer], error)
	ListProducts(ctx context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Product], error)
	ListOrders(ctx context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Order], error)
	Customer(ctx context.Context, id int64) (*domain.Customer, error)
	Product(ctx context.Context, id int64) (*domain.Product, error)
	Order(ctx context.Context, id int64) (*domain.Order, error)
}

// Options holds the optional endpoints mounted next to the listings.
type Options struct {
	Export http.Handler
	Import http.Handler
}

type api struct {
	svc Service
}

// NewRouter mounts the API on r under /api.
func NewRouter(r *mux.Router, svc Service, opts Options) {
	a := &api{svc: svc}
	sub := r.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/filters", a.filters).Methods(http.MethodGet)
	if opts.Import != nil {
		sub.Handle("/customers/import", opts.Import).Methods(http.MethodPost)
	}
	if opts.Export != nil {
		sub.Handle("/{entity}/export", opts.Export).Methods(http.MethodGet)
	}
	sub.HandleFunc("/{entity}/{id:[0-9]+}", a.get).Methods(http.MethodGet)
	sub.HandleFunc("/{entity}", a.list).Methods(http.MethodGet)
	sub.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
}

type listResponse struct {
	Items       any  `json:"items"`
	TotalCount  int  `json:"totalCount"`
	Limit       int  `json:"limit"`
	Offset      int  `json:"offset"`
	HasNextPage bool `json:"hasNextPage"`
}

type errorBody struct {
	Error   string   `json:"error"`
	Filters []string `json:"filters,omitempty"`
}

func (a *api) list(w http.ResponseWriter, r *http.Request) {
	entity, ok := filtersets.EntityForCollection(mux.Vars(r)["entity"])
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown entity"})
		return
	}
	page, err := pageParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	req := filter.FromValues(r.URL.Query(), "limit", "offset")

	var resp listResponse
	switch entity {
	case filtersets.CustomerEntity:
		resp, err = listOf(a.svc.ListCustomers(r.Context(), req, page))
	case filtersets.ProductEntity:
		resp, err = listOf(a.svc.ListProducts(r.Context(), req, page))
	case filtersets.OrderEntity:
		resp, err = listOf(a.svc.ListOrders(r.Context(), req, page))
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp.Limit = page.Limit
	writeJSON(w, http.StatusOK, resp)
}

func listOf[T any](l crm.Listing[T], err error) (listResponse, error) {
	if err != nil {
		return listResponse{}, err
	}
	return listResponse{
		Items:       l.Items,
		TotalCount:  l.TotalCount,
		Offset:      l.Offset,
		HasNextPage: l.HasNextPage(),
	}, nil
}

func (a *api) get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entity, ok := filtersets.EntityForCollection(vars["entity"])
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown entity"})
		return
	}
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	var (
		record any
		found  bool
	)
	switch entity {
	case filtersets.CustomerEntity:
		record, found, err = one(a.svc.Customer(r.Context(), id))
	case filtersets.ProductEntity:
		record, found, err = one(a.svc.Product(r.Context(), id))
	case filtersets.OrderEntity:
		record, found, err = one(a.svc.Order(r.Context(), id))
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody{Error: entity + " not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func one[T any](v *T, err error) (any, bool, error) {
	if err != nil || v == nil {
		return nil, false, err
	}
	return v, true, nil
}

// queryEncoding is served with the filter list. Query strings decode + as a
// space, so phone_pattern=+1 arrives as " 1".
const queryEncoding = "Filter values are URL query parameters and must be percent-encoded. " +
	"Send a literal + as %2B, e.g. phone_pattern=%2B1."

type filterDescription struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type filtersResponse struct {
	Encoding string                         `json:"encoding"`
	Entities map[string][]filterDescription `json:"entities"`
}

// filters lists the filters each entity accepts.
func (a *api) filters(w http.ResponseWriter, _ *http.Request) {
	out := map[string][]filterDescription{}
	for _, name := range filtersets.Default.Entities() {
		spec, _ := filtersets.Default.Lookup(name)
		for _, f := range spec.Fields() {
			kind := f.Type.String()
			if f.Op == filter.OpIn {
				kind = "list of " + kind
			}
			out[name] = append(out[name], filterDescription{Name: f.Name, Type: kind})
		}
	}
	writeJSON(w, http.StatusOK, filtersResponse{Encoding: queryEncoding, Entities: out})
}

func pageParams(r *http.Request) (repository.Page, error) {
	q := r.URL.Query()
	page := repository.Page{Limit: defaultLimit}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return repository.Page{}, errors.New("limit must be a positive integer")
		}
		page.Limit = min(n, maxLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return repository.Page{}, errors.New("offset must be zero or positive")
		}
		page.Offset = n
	}
	return page, nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *filter.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Filters: verr.Filters()})
		return
	}
	logging.FromContext(r.Context()).Error("api request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
