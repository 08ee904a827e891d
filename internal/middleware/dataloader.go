package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/crmql/internal/entityloader"
	"github.com/rpattn/crmql/internal/repository"
)

type ctxKey string

const loadersKey ctxKey = "loaders"

// Loaders holds the per-request batch loaders.
type Loaders struct {
	Customers     *entityloader.CustomerLoader
	OrderProducts *entityloader.OrderProductsLoader
}

// NewLoaders creates fresh loaders over store.
func NewLoaders(store repository.Store) *Loaders {
	return &Loaders{
		Customers:     entityloader.NewCustomerLoader(store.Customers()),
		OrderProducts: entityloader.NewOrderProductsLoader(store.Products()),
	}
}

// WithLoaders stores loaders in ctx.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, l)
}

// DataLoaderMiddleware attaches new loaders to every request context so
// results are never cached across requests.
func DataLoaderMiddleware(store repository.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadersFromContext retrieves the loaders from context
func LoadersFromContext(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return l
	}
	return nil
}
