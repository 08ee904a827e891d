package graphql

import (
	"context"

	"github.com/rpattn/crmql/graph"
	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/middleware"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/huandu/xstrings"
	"github.com/samber/lo"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Resolver handles GraphQL queries and mutations
type Resolver struct {
	svc   *crm.Service
	store repository.Store
}

// NewResolver creates a new GraphQL resolver. store backs the batch loaders
// when a request arrives without them.
func NewResolver(svc *crm.Service, store repository.Store) *Resolver {
	return &Resolver{svc: svc, store: store}
}

func (r *Resolver) loaders(ctx context.Context) *middleware.Loaders {
	if l := middleware.LoadersFromContext(ctx); l != nil {
		return l
	}
	return middleware.NewLoaders(r.store)
}

func pageArgs(in *graph.PaginationInput) (repository.Page, error) {
	page := repository.Page{Limit: defaultLimit}
	if in == nil {
		return page, nil
	}
	if in.Limit != nil {
		if *in.Limit < 1 {
			return page, badInput("pagination.limit must be a positive integer")
		}
		page.Limit = min(*in.Limit, maxLimit)
	}
	if in.Offset != nil {
		if *in.Offset < 0 {
			return page, badInput("pagination.offset must not be negative")
		}
		page.Offset = *in.Offset
	}
	return page, nil
}

// set copies a supplied filter argument into req under its snake_case name.
func set[T any](req filter.Request, arg string, v *T) {
	if v != nil {
		req[xstrings.ToSnakeCase(arg)] = *v
	}
}

func customerFilter(f *graph.CustomerFilter) filter.Request {
	req := filter.Request{}
	if f == nil {
		return req
	}
	set(req, "name", f.Name)
	set(req, "email", f.Email)
	set(req, "createdAtGte", f.CreatedAtGte)
	set(req, "createdAtLte", f.CreatedAtLte)
	set(req, "phonePattern", f.PhonePattern)
	return req
}

func productFilter(f *graph.ProductFilter) filter.Request {
	req := filter.Request{}
	if f == nil {
		return req
	}
	set(req, "name", f.Name)
	set(req, "priceGte", f.PriceGte)
	set(req, "priceLte", f.PriceLte)
	set(req, "stockGte", f.StockGte)
	set(req, "stockLte", f.StockLte)
	set(req, "stock", f.Stock)
	set(req, "lowStock", f.LowStock)
	return req
}

func orderFilter(f *graph.OrderFilter) filter.Request {
	req := filter.Request{}
	if f == nil {
		return req
	}
	set(req, "totalAmountGte", f.TotalAmountGte)
	set(req, "totalAmountLte", f.TotalAmountLte)
	set(req, "orderDateGte", f.OrderDateGte)
	set(req, "orderDateLte", f.OrderDateLte)
	set(req, "customerName", f.CustomerName)
	set(req, "productName", f.ProductName)
	set(req, "productId", f.ProductID)
	return req
}

func pageInfo[T any](l crm.Listing[T]) *graph.PageInfo {
	return &graph.PageInfo{
		HasNextPage:     l.HasNextPage(),
		HasPreviousPage: l.HasPreviousPage(),
		TotalCount:      l.TotalCount,
	}
}

func customerConnection(l crm.Listing[domain.Customer]) *graph.CustomerConnection {
	edges := make([]*graph.CustomerEdge, len(l.Items))
	for i := range l.Items {
		edges[i] = &graph.CustomerEdge{Node: &l.Items[i]}
	}
	return &graph.CustomerConnection{Edges: edges, PageInfo: pageInfo(l), TotalCount: l.TotalCount}
}

func productConnection(l crm.Listing[domain.Product]) *graph.ProductConnection {
	edges := make([]*graph.ProductEdge, len(l.Items))
	for i := range l.Items {
		edges[i] = &graph.ProductEdge{Node: &l.Items[i]}
	}
	return &graph.ProductConnection{Edges: edges, PageInfo: pageInfo(l), TotalCount: l.TotalCount}
}

func orderConnection(l crm.Listing[domain.Order]) *graph.OrderConnection {
	edges := make([]*graph.OrderEdge, len(l.Items))
	for i := range l.Items {
		edges[i] = &graph.OrderEdge{Node: &l.Items[i]}
	}
	return &graph.OrderConnection{Edges: edges, PageInfo: pageInfo(l), TotalCount: l.TotalCount}
}

// message is null when the service left it empty.
func message(s string) *string {
	return lo.EmptyableToPtr(s)
}

func errorList(msgs []string) []string {
	if msgs == nil {
		return []string{}
	}
	return msgs
}
