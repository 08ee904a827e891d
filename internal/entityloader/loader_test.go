package entityloader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCustomers struct {
	repository.CustomerRepository
	mu    sync.Mutex
	calls [][]int64
	err   error
}

func (c *countingCustomers) GetByIDs(_ context.Context, ids []int64) ([]domain.Customer, error) {
	c.mu.Lock()
	c.calls = append(c.calls, ids)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	var out []domain.Customer
	for _, id := range ids {
		if id < 100 {
			out = append(out, domain.Customer{ID: id, Name: "customer"})
		}
	}
	return out, nil
}

type orderProducts struct {
	repository.ProductRepository
	calls int
}

func (p *orderProducts) ByOrderIDs(_ context.Context, ids []int64) (map[int64][]domain.Product, error) {
	p.calls++
	return map[int64][]domain.Product{1: {{ID: 10, Name: "Laptop"}}}, nil
}

func TestCustomerLoaderBatches(t *testing.T) {
	repo := &countingCustomers{}
	loader := NewCustomerLoader(repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*domain.Customer, 3)
	for i, id := range []int64{1, 2, 200} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := loader.Load(ctx, id)
			assert.NoError(t, err)
			got[i] = c
		}()
	}
	wg.Wait()

	require.Len(t, repo.calls, 1)
	assert.ElementsMatch(t, []int64{1, 2, 200}, repo.calls[0])
	require.NotNil(t, got[0])
	assert.Equal(t, int64(1), got[0].ID)
	require.NotNil(t, got[1])
	assert.Nil(t, got[2])
}

func TestCustomerLoaderPropagatesErrors(t *testing.T) {
	loader := NewCustomerLoader(&countingCustomers{err: errors.New("db down")})

	_, err := loader.Load(context.Background(), 1)
	assert.EqualError(t, err, "db down")
}

func TestOrderProductsLoader(t *testing.T) {
	repo := &orderProducts{}
	loader := NewOrderProductsLoader(repo)
	ctx := context.Background()

	products, err := loader.Load(ctx, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Laptop", products[0].Name)

	empty, err := loader.Load(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
