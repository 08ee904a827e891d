package entityloader

import (
	"context"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/graph-gophers/dataloader"
)

// OrderProductsLoader batches the product lists of orders.
type OrderProductsLoader struct {
	Loader *dataloader.Loader
}

// NewOrderProductsLoader creates a per-request loader keyed by order ID.
func NewOrderProductsLoader(repo repository.ProductRepository) *OrderProductsLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids, err := parseKeys(keys)
		if err != nil {
			return failAll(len(keys), err)
		}

		byOrder, err := repo.ByOrderIDs(ctx, ids)
		if err != nil {
			return failAll(len(keys), err)
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			products := byOrder[id]
			if products == nil {
				products = []domain.Product{}
			}
			results[i] = &dataloader.Result{Data: products}
		}
		return results
	}

	return &OrderProductsLoader{
		Loader: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(batchWait)),
	}
}

// Load returns the products of the order, ordered by name.
func (l *OrderProductsLoader) Load(ctx context.Context, orderID int64) ([]domain.Product, error) {
	data, err := l.Loader.Load(ctx, Key(orderID))()
	if err != nil {
		return nil, err
	}
	products, _ := data.([]domain.Product)
	return products, nil
}
