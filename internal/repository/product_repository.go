package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/crmql/internal/db"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var (
	productColumns = []string{"id", "name", "price", "stock", "created_at", "updated_at"}
	productOrder   = []string{"products.name ASC", "products.id ASC"}
)

// productRepository implements ProductRepository interface
type productRepository struct {
	db db.DBTX
}

// NewProductRepository creates a new product repository
func NewProductRepository(exec db.DBTX) ProductRepository {
	return &productRepository{db: exec}
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *productRepository) selectProducts() sq.SelectBuilder {
	return psql.Select(qualify(filtersets.Products, productColumns)...).From(filtersets.Products.Name)
}

// Create inserts a product
func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	query, args, err := psql.Insert(filtersets.Products.Name).
		Columns("name", "price", "stock", "created_at", "updated_at").
		Values(product.Name, product.Price, product.Stock, product.CreatedAt, product.UpdatedAt).
		Suffix("RETURNING " + strings.Join(productColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to build product insert: %w", err)
	}

	created, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to create product: %w", mapWriteError(err))
	}
	return created, nil
}

// GetByID retrieves a product by ID
func (r *productRepository) GetByID(ctx context.Context, id int64) (domain.Product, error) {
	p, err := selectOne(ctx, r.db, r.selectProducts().Where(sq.Eq{"products.id": id}), scanProduct)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

// GetByIDs retrieves the products with the given IDs ordered by name
func (r *productRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	b := r.selectProducts().Where(sq.Eq{"products.id": ids}).OrderBy(productOrder...)
	products, err := selectAll(ctx, r.db, b, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("failed to get products by IDs: %w", err)
	}
	return products, nil
}

// GetByName retrieves the first product with exactly this name
func (r *productRepository) GetByName(ctx context.Context, name string) (domain.Product, error) {
	b := r.selectProducts().Where(sq.Eq{"products.name": name}).OrderBy("products.id ASC").Limit(1)
	p, err := selectOne(ctx, r.db, b, scanProduct)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product by name: %w", err)
	}
	return p, nil
}

// ByOrderIDs loads the products linked to each order
func (r *productRepository) ByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]domain.Product, error) {
	result := make(map[int64][]domain.Product, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	link := filtersets.OrderProductsTable
	columns := append([]string{link + ".order_id"}, qualify(filtersets.Products, productColumns)...)
	query, args, err := psql.Select(columns...).
		From(filtersets.Products.Name).
		Join(fmt.Sprintf("%s ON %s.product_id = products.id", link, link)).
		Where(sq.Eq{link + ".order_id": orderIDs}).
		OrderBy(productOrder...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order products query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load order products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			p       domain.Product
		)
		if err := rows.Scan(&orderID, &p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order product: %w", err)
		}
		result[orderID] = append(result[orderID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order products: %w", err)
	}
	return result, nil
}

// Find lists products matching q
func (r *productRepository) Find(ctx context.Context, q filter.Query, page Page) ([]domain.Product, int, error) {
	products, total, err := find(ctx, r.db, q, productColumns, productOrder, page, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}
