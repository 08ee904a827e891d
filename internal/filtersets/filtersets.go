package filtersets

import (
	"github.com/rpattn/crmql/internal/filter"

	sq "github.com/Masterminds/squirrel"
)

// Entity names used for registry lookups and error reporting.
const (
	CustomerEntity = "customer"
	ProductEntity  = "product"
	OrderEntity    = "order"
)

// collections maps URL path segments to entity names.
var collections = map[string]string{
	"customers": CustomerEntity,
	"products":  ProductEntity,
	"orders":    OrderEntity,
}

// EntityForCollection returns the entity served under a plural path segment
// such as "customers".
func EntityForCollection(segment string) (string, bool) {
	entity, ok := collections[segment]
	return entity, ok
}

// LowStockThreshold is the exclusive stock bound used by the low_stock filter.
const LowStockThreshold = 10

var (
	Customer = filter.MustSpec(CustomerEntity, Customers,
		filter.Compare("name", "name", filter.OpIContains),
		filter.Compare("email", "email", filter.OpIContains),
		filter.Compare("created_at_gte", "created_at", filter.OpGte),
		filter.Compare("created_at_lte", "created_at", filter.OpLte),
		filter.Custom("phone_pattern", filter.TypeText, phonePrefix),
	)

	Product = filter.MustSpec(ProductEntity, Products,
		filter.Compare("name", "name", filter.OpIContains),
		filter.Compare("price_gte", "price", filter.OpGte),
		filter.Compare("price_lte", "price", filter.OpLte),
		filter.Compare("stock_gte", "stock", filter.OpGte),
		filter.Compare("stock_lte", "stock", filter.OpLte),
		filter.Compare("stock", "stock", filter.OpExact),
		filter.Custom("low_stock", filter.TypeBoolean, lowStock),
	)

	Order = filter.MustSpec(OrderEntity, Orders,
		filter.Compare("total_amount_gte", "total_amount", filter.OpGte),
		filter.Compare("total_amount_lte", "total_amount", filter.OpLte),
		filter.Compare("order_date_gte", "order_date", filter.OpGte),
		filter.Compare("order_date_lte", "order_date", filter.OpLte),
		filter.Compare("customer_name", "customer.name", filter.OpIContains),
		filter.Compare("product_name", "products.name", filter.OpIContains),
		filter.Custom("product_id", filter.TypeInteger, productID),
	)

	// Default holds every CRM spec keyed by entity name.
	Default = filter.MustRegistry(Customer, Product, Order)
)

func phonePrefix(q filter.Query, value any) (filter.Query, error) {
	prefix, _ := value.(string)
	if prefix == "" {
		return q, nil
	}
	return q.Filter("phone", filter.OpStartsWith, prefix)
}

// lowStock only narrows on true; false leaves the query untouched.
func lowStock(q filter.Query, value any) (filter.Query, error) {
	if on, _ := value.(bool); !on {
		return q, nil
	}
	return q.Where(sq.Lt{Products.Qualified("stock"): LowStockThreshold}), nil
}

func productID(q filter.Query, value any) (filter.Query, error) {
	id, _ := value.(int64)
	if id == 0 {
		return q, nil
	}
	next, err := q.Filter("products.id", filter.OpExact, id)
	if err != nil {
		return filter.Query{}, err
	}
	return next.Distinct(), nil
}
