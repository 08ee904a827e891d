package graphql

// This file will be automatically regenerated based on the schema, any resolver implementations
// will be copied through when generating and any unknown code will be moved to the end.
// Code generated by github.com/99designs/gqlgen version v0.17.81

import (
	"context"

	"github.com/rpattn/crmql/graph"
	"github.com/rpattn/crmql/internal/domain"

	"github.com/samber/lo"
)

// CreateCustomer is the resolver for the createCustomer field.
func (r *mutationResolver) CreateCustomer(ctx context.Context, input domain.CustomerInput) (*graph.CustomerPayload, error) {
	out, err := r.svc.CreateCustomer(ctx, input)
	if err != nil {
		return nil, err
	}
	return &graph.CustomerPayload{Customer: out.Customer, Message: message(out.Message), Errors: errorList(out.Errors)}, nil
}

// BulkCreateCustomers is the resolver for the bulkCreateCustomers field.
func (r *mutationResolver) BulkCreateCustomers(ctx context.Context, input []*domain.CustomerInput) (*graph.BulkCustomersPayload, error) {
	out, err := r.svc.BulkCreateCustomers(ctx, lo.FromSlicePtr(input))
	if err != nil {
		return nil, err
	}
	return &graph.BulkCustomersPayload{Customers: lo.ToSlicePtr(out.Customers), Errors: errorList(out.Errors)}, nil
}

// CreateProduct is the resolver for the createProduct field.
func (r *mutationResolver) CreateProduct(ctx context.Context, input domain.ProductInput) (*graph.ProductPayload, error) {
	out, err := r.svc.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}
	return &graph.ProductPayload{Product: out.Product, Message: message(out.Message), Errors: errorList(out.Errors)}, nil
}

// CreateOrder is the resolver for the createOrder field.
func (r *mutationResolver) CreateOrder(ctx context.Context, input domain.OrderInput) (*graph.OrderPayload, error) {
	out, err := r.svc.CreateOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	return &graph.OrderPayload{Order: out.Order, Message: message(out.Message), Errors: errorList(out.Errors)}, nil
}

// Customer is the resolver for the customer field.
func (r *orderResolver) Customer(ctx context.Context, obj *domain.Order) (*domain.Customer, error) {
	return r.loaders(ctx).Customers.Load(ctx, obj.CustomerID)
}

// Products is the resolver for the products field.
func (r *orderResolver) Products(ctx context.Context, obj *domain.Order) ([]*domain.Product, error) {
	products, err := r.loaders(ctx).OrderProducts.Load(ctx, obj.ID)
	if err != nil {
		return nil, err
	}
	return lo.ToSlicePtr(products), nil
}

// Hello is the resolver for the hello field.
func (r *queryResolver) Hello(ctx context.Context) (string, error) {
	return r.svc.Hello(), nil
}

// AllCustomers is the resolver for the allCustomers field.
func (r *queryResolver) AllCustomers(ctx context.Context, filter *graph.CustomerFilter, pagination *graph.PaginationInput) (*graph.CustomerConnection, error) {
	page, err := pageArgs(pagination)
	if err != nil {
		return nil, err
	}
	listing, err := r.svc.ListCustomers(ctx, customerFilter(filter), page)
	if err != nil {
		return nil, err
	}
	return customerConnection(listing), nil
}

// AllProducts is the resolver for the allProducts field.
func (r *queryResolver) AllProducts(ctx context.Context, filter *graph.ProductFilter, pagination *graph.PaginationInput) (*graph.ProductConnection, error) {
	page, err := pageArgs(pagination)
	if err != nil {
		return nil, err
	}
	listing, err := r.svc.ListProducts(ctx, productFilter(filter), page)
	if err != nil {
		return nil, err
	}
	return productConnection(listing), nil
}

// AllOrders is the resolver for the allOrders field.
func (r *queryResolver) AllOrders(ctx context.Context, filter *graph.OrderFilter, pagination *graph.PaginationInput) (*graph.OrderConnection, error) {
	page, err := pageArgs(pagination)
	if err != nil {
		return nil, err
	}
	listing, err := r.svc.ListOrders(ctx, orderFilter(filter), page)
	if err != nil {
		return nil, err
	}
	return orderConnection(listing), nil
}

// Customer is the resolver for the customer field.
func (r *queryResolver) Customer(ctx context.Context, id int64) (*domain.Customer, error) {
	return r.svc.Customer(ctx, id)
}

// Product is the resolver for the product field.
func (r *queryResolver) Product(ctx context.Context, id int64) (*domain.Product, error) {
	return r.svc.Product(ctx, id)
}

// Order is the resolver for the order field.
func (r *queryResolver) Order(ctx context.Context, id int64) (*domain.Order, error) {
	return r.svc.Order(ctx, id)
}

// Mutation returns graph.MutationResolver implementation.
func (r *Resolver) Mutation() graph.MutationResolver { return &mutationResolver{r} }

// Order returns graph.OrderResolver implementation.
func (r *Resolver) Order() graph.OrderResolver { return &orderResolver{r} }

// Query returns graph.QueryResolver implementation.
func (r *Resolver) Query() graph.QueryResolver { return &queryResolver{r} }

type mutationResolver struct{ *Resolver }
type orderResolver struct{ *Resolver }
type queryResolver struct{ *Resolver }
