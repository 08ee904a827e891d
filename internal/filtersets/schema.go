// Package filtersets declares the CRM tables and the named filters each API
// entity exposes.
package filtersets

import "github.com/rpattn/crmql/internal/filter"

var (
	Customers = &filter.Table{
		Name:       "customers",
		PrimaryKey: "id",
		Columns: []filter.Column{
			{Name: "id", Type: filter.TypeInteger},
			{Name: "name", Type: filter.TypeText},
			{Name: "email", Type: filter.TypeText},
			{Name: "phone", Type: filter.TypeText},
			{Name: "created_at", Type: filter.TypeTimestamp},
			{Name: "updated_at", Type: filter.TypeTimestamp},
		},
	}

	Products = &filter.Table{
		Name:       "products",
		PrimaryKey: "id",
		Columns: []filter.Column{
			{Name: "id", Type: filter.TypeInteger},
			{Name: "name", Type: filter.TypeText},
			{Name: "price", Type: filter.TypeDecimal},
			{Name: "stock", Type: filter.TypeInteger},
			{Name: "created_at", Type: filter.TypeTimestamp},
			{Name: "updated_at", Type: filter.TypeTimestamp},
		},
	}

	Orders = &filter.Table{
		Name:       "orders",
		PrimaryKey: "id",
		Columns: []filter.Column{
			{Name: "id", Type: filter.TypeInteger},
			{Name: "customer_id", Type: filter.TypeInteger},
			{Name: "total_amount", Type: filter.TypeDecimal},
			{Name: "order_date", Type: filter.TypeTimestamp},
			{Name: "created_at", Type: filter.TypeTimestamp},
			{Name: "updated_at", Type: filter.TypeTimestamp},
		},
		Relations: []filter.Relation{
			{Name: "customer", Kind: filter.BelongsTo, Target: Customers, LocalKey: "customer_id"},
			{
				Name:          "products",
				Kind:          filter.ManyToMany,
				Target:        Products,
				Through:       OrderProductsTable,
				ThroughLocal:  "order_id",
				ThroughRemote: "product_id",
			},
		},
	}
)

// OrderProductsTable links orders to the products they contain.
const OrderProductsTable = "order_products"
