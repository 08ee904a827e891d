package entityloader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/graph-gophers/dataloader"
)

const batchWait = 5 * time.Millisecond

// Key returns the loader key of a row ID.
func Key(id int64) dataloader.Key {
	return dataloader.StringKey(strconv.FormatInt(id, 10))
}

func parseKeys(keys dataloader.Keys) ([]int64, error) {
	ids := make([]int64, len(keys))
	for i, k := range keys {
		id, err := strconv.ParseInt(k.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID key %q: %w", k.String(), err)
		}
		ids[i] = id
	}
	return ids, nil
}

func failAll(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// CustomerLoader batches customer lookups by ID.
type CustomerLoader struct {
	Loader *dataloader.Loader
}

// NewCustomerLoader creates a per-request customer loader. Missing customers
// resolve to nil.
func NewCustomerLoader(repo repository.CustomerRepository) *CustomerLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids, err := parseKeys(keys)
		if err != nil {
			return failAll(len(keys), err)
		}

		customers, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			return failAll(len(keys), err)
		}

		byID := make(map[int64]domain.Customer, len(customers))
		for _, c := range customers {
			byID[c.ID] = c
		}

		// results follow key order
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if c, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: c}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	return &CustomerLoader{
		Loader: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(batchWait)),
	}
}

// Load returns the customer with id, or nil when it does not exist.
func (l *CustomerLoader) Load(ctx context.Context, id int64) (*domain.Customer, error) {
	data, err := l.Loader.Load(ctx, Key(id))()
	if err != nil {
		return nil, err
	}
	c, ok := data.(domain.Customer)
	if !ok {
		return nil, nil
	}
	return &c, nil
}
