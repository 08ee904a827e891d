// Package seed fills a database with sample CRM data.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type customerFixture struct {
	name, email, phone string
}

type productFixture struct {
	name  string
	price string
	stock int
}

var customerFixtures = []customerFixture{
	{"Alice Johnson", "alice@example.com", "+1234567890"},
	{"Bob Smith", "bob@example.com", "123-456-7890"},
	{"Carol Williams", "carol@example.com", "+1987654321"},
	{"David Brown", "david@example.com", ""},
	{"Eve Davis", "eve@example.com", "555-123-4567"},
	{"Frank Miller", "frank@example.com", "+1555987654"},
	{"Grace Wilson", "grace@example.com", ""},
	{"Henry Taylor", "henry@example.com", "777-888-9999"},
}

var productFixtures = []productFixture{
	{"Laptop", "999.99", 15},
	{"Desktop Computer", "799.99", 8},
	{"Smartphone", "599.99", 25},
	{"Tablet", "399.99", 12},
	{"Headphones", "149.99", 30},
	{"Keyboard", "79.99", 20},
	{"Mouse", "49.99", 35},
	{"Monitor", "299.99", 10},
	{"Webcam", "89.99", 18},
	{"Speaker", "199.99", 5},
}

// Options controls how much data is generated.
type Options struct {
	// Orders is the number of sample orders created when no orders exist.
	Orders int
	// Fake adds this many generated customers and products.
	Fake int
	// Seed makes generated data reproducible. Zero picks a random seed.
	Seed int64
}

// DefaultOptions returns the options used by the seed command.
func DefaultOptions() Options {
	return Options{Orders: 15}
}

// Result counts the rows created by a run.
type Result struct {
	Customers int
	Products  int
	Orders    int
}

// Seeder writes sample data through the repositories.
type Seeder struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates a seeder over store.
func New(store repository.Store, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{store: store, logger: logger, now: time.Now}
}

// Run creates the fixture customers and products that do not exist yet,
// matching customers by email and products by name, then the generated rows
// and the sample orders, all in one transaction. Running it twice without
// Fake creates nothing the second time.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	faker := gofakeit.New(opts.Seed)
	var res Result
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		res = Result{}
		for _, f := range customerFixtures {
			created, err := s.customer(ctx, tx.Customers(), f.name, f.email, lo.EmptyableToPtr(f.phone))
			if err != nil {
				return err
			}
			res.Customers += lo.Ternary(created, 1, 0)
		}
		for _, f := range productFixtures {
			created, err := s.product(ctx, tx.Products(), f.name, decimal.RequireFromString(f.price), f.stock)
			if err != nil {
				return err
			}
			res.Products += lo.Ternary(created, 1, 0)
		}

		fakeCustomers, fakeProducts, err := s.fake(ctx, tx, faker, opts.Fake)
		if err != nil {
			return err
		}
		res.Customers += fakeCustomers
		res.Products += fakeProducts

		res.Orders, err = s.orders(ctx, tx, faker, opts.Orders)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("seed: %w", err)
	}
	s.logger.Info("seed finished",
		zap.Int("customers", res.Customers),
		zap.Int("products", res.Products),
		zap.Int("orders", res.Orders))
	return res, nil
}

func (s *Seeder) customer(ctx context.Context, repo repository.CustomerRepository, name, email string, phone *string) (bool, error) {
	_, err := repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Debug("customer already exists", zap.String("email", email))
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("look up customer %s: %w", email, err)
	}
	if _, err := repo.Create(ctx, domain.NewCustomer(name, email, phone)); err != nil {
		return false, fmt.Errorf("create customer %s: %w", email, err)
	}
	s.logger.Debug("customer created", zap.String("email", email))
	return true, nil
}

func (s *Seeder) product(ctx context.Context, repo repository.ProductRepository, name string, price decimal.Decimal, stock int) (bool, error) {
	_, err := repo.GetByName(ctx, name)
	if err == nil {
		s.logger.Debug("product already exists", zap.String("name", name))
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("look up product %s: %w", name, err)
	}
	if _, err := repo.Create(ctx, domain.NewProduct(name, price, stock)); err != nil {
		return false, fmt.Errorf("create product %s: %w", name, err)
	}
	s.logger.Debug("product created", zap.String("name", name))
	return true, nil
}

// fake generates n customers and n products. Generated values that collide
// with existing rows are skipped.
func (s *Seeder) fake(ctx context.Context, tx repository.Store, faker *gofakeit.Faker, n int) (int, int, error) {
	var customers, products int
	for i := 0; i < n; i++ {
		in := domain.CustomerInput{
			Name:  faker.Name(),
			Email: faker.Email(),
			Phone: lo.ToPtr(faker.Numerify("###-###-####")),
		}
		if msgs := in.Validate(); len(msgs) > 0 {
			continue
		}
		created, err := s.customer(ctx, tx.Customers(), in.Name, in.Email, in.Phone)
		if err != nil {
			return 0, 0, err
		}
		customers += lo.Ternary(created, 1, 0)

		price := decimal.NewFromFloat(faker.Price(1, 2000)).Round(2)
		if !price.IsPositive() {
			price = decimal.NewFromInt(1)
		}
		created, err = s.product(ctx, tx.Products(), faker.ProductName(), price, faker.IntRange(0, 100))
		if err != nil {
			return 0, 0, err
		}
		products += lo.Ternary(created, 1, 0)
	}
	return customers, products, nil
}

// orders creates n orders for random customers, each with one to four
// random products dated within the last 30 days. Nothing is created when
// orders already exist.
func (s *Seeder) orders(ctx context.Context, tx repository.Store, faker *gofakeit.Faker, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	existing, err := tx.Orders().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	if existing > 0 {
		s.logger.Debug("orders already exist", zap.Int("count", existing))
		return 0, nil
	}

	all := repository.Page{}
	customers, _, err := tx.Customers().Find(ctx, filter.NewQuery(filtersets.Customers), all)
	if err != nil {
		return 0, fmt.Errorf("list customers: %w", err)
	}
	products, _, err := tx.Products().Find(ctx, filter.NewQuery(filtersets.Products), all)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if len(customers) == 0 || len(products) == 0 {
		s.logger.Warn("no customers or products to build orders from")
		return 0, nil
	}

	for i := 0; i < n; i++ {
		customer := customers[faker.IntRange(0, len(customers)-1)]
		picked := make([]domain.Product, len(products))
		copy(picked, products)
		faker.ShuffleAnySlice(picked)
		picked = picked[:min(faker.IntRange(1, 4), len(picked))]

		date := s.now().UTC().AddDate(0, 0, -faker.IntRange(0, 30))
		ids := lo.Map(picked, func(p domain.Product, _ int) int64 { return p.ID })
		if _, err := tx.Orders().Create(ctx, domain.NewOrder(customer.ID, picked, date), ids); err != nil {
			return i, fmt.Errorf("create order for %s: %w", customer.Email, err)
		}
	}
	return n, nil
}
