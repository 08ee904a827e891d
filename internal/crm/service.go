package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Greeting is returned by the hello query.
const Greeting = "Hello, GraphQL!"

// Service exposes the CRM queries and mutations to the transports.
type Service struct {
	store      repository.Store
	logger     *zap.Logger
	rejections *prometheus.CounterVec
}

// NewService creates a service over store. The filter rejection counter is
// registered with reg when reg is not nil.
func NewService(store repository.Store, logger *zap.Logger, reg prometheus.Registerer) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmql_filter_rejections_total",
		Help: "Filter requests rejected because a value could not be coerced.",
	}, []string{"entity"})
	if reg != nil {
		if err := reg.Register(rejections); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
			rejections = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return &Service{store: store, logger: logger, rejections: rejections}
}

// Hello returns the greeting.
func (s *Service) Hello() string {
	return Greeting
}

// Listing is one page of a filtered listing.
type Listing[T any] struct {
	Items      []T
	TotalCount int
	Offset     int
}

// HasNextPage reports whether rows exist past this page.
func (l Listing[T]) HasNextPage() bool {
	return l.Offset+len(l.Items) < l.TotalCount
}

// HasPreviousPage reports whether rows exist before this page.
func (l Listing[T]) HasPreviousPage() bool {
	return l.Offset > 0
}

type finder[T any] func(ctx context.Context, q filter.Query, page repository.Page) ([]T, int, error)

func list[T any](ctx context.Context, s *Service, spec *filter.Spec, req filter.Request, page repository.Page, find finder[T]) (Listing[T], error) {
	q, err := filter.Apply(filter.NewQuery(spec.Table()), spec, req)
	if err != nil {
		var verr *filter.ValidationError
		if errors.As(err, &verr) {
			s.rejections.WithLabelValues(spec.Entity()).Inc()
		}
		return Listing[T]{}, err
	}
	if unknown := spec.Unknown(req); len(unknown) > 0 {
		s.logger.Debug("ignoring unknown filters",
			zap.String("entity", spec.Entity()),
			zap.Strings("filters", unknown))
	}

	items, total, err := find(ctx, q, page)
	if err != nil {
		return Listing[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return Listing[T]{Items: items, TotalCount: total, Offset: page.Offset}, nil
}

// ListCustomers returns the customers matching req.
func (s *Service) ListCustomers(ctx context.Context, req filter.Request, page repository.Page) (Listing[domain.Customer], error) {
	return list(ctx, s, filtersets.Customer, req, page, s.store.Customers().Find)
}

// ListProducts returns the products matching req.
func (s *Service) ListProducts(ctx context.Context, req filter.Request, page repository.Page) (Listing[domain.Product], error) {
	return list(ctx, s, filtersets.Product, req, page, s.store.Products().Find)
}

// ListOrders returns the orders matching req, newest first.
func (s *Service) ListOrders(ctx context.Context, req filter.Request, page repository.Page) (Listing[domain.Order], error) {
	return list(ctx, s, filtersets.Order, req, page, s.store.Orders().Find)
}

func getOne[T any](v T, err error) (*T, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Customer returns the customer or nil when it does not exist.
func (s *Service) Customer(ctx context.Context, id int64) (*domain.Customer, error) {
	return getOne(s.store.Customers().GetByID(ctx, id))
}

// Product returns the product or nil when it does not exist.
func (s *Service) Product(ctx context.Context, id int64) (*domain.Product, error) {
	return getOne(s.store.Products().GetByID(ctx, id))
}

// Order returns the order or nil when it does not exist.
func (s *Service) Order(ctx context.Context, id int64) (*domain.Order, error) {
	return getOne(s.store.Orders().GetByID(ctx, id))
}

// CustomersByID returns the customers with the given ids keyed by id.
// Missing ids are absent from the map.
func (s *Service) CustomersByID(ctx context.Context, ids []int64) (map[int64]domain.Customer, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[int64]domain.Customer{}, nil
	}
	customers, err := s.store.Customers().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(customers, func(c domain.Customer) int64 { return c.ID }), nil
}

// ProductsForOrders returns the products of each order keyed by order id.
func (s *Service) ProductsForOrders(ctx context.Context, orderIDs []int64) (map[int64][]domain.Product, error) {
	orderIDs = lo.Uniq(orderIDs)
	if len(orderIDs) == 0 {
		return map[int64][]domain.Product{}, nil
	}
	return s.store.Products().ByOrderIDs(ctx, orderIDs)
}

// CustomerPayload is the outcome of creating one customer.
type CustomerPayload struct {
	Customer *domain.Customer
	Message  string
	Errors   []string
}

// BulkCustomersPayload is the outcome of a bulk customer import.
type BulkCustomersPayload struct {
	Customers []domain.Customer
	Errors    []string
}

// ProductPayload is the outcome of creating a product.
type ProductPayload struct {
	Product *domain.Product
	Message string
	Errors  []string
}

// OrderPayload is the outcome of creating an order.
type OrderPayload struct {
	Order    *domain.Order
	Products []domain.Product
	Message  string
	Errors   []string
}

// checkCustomer returns the messages that prevent in from being created.
func checkCustomer(ctx context.Context, repo repository.CustomerRepository, in domain.CustomerInput) ([]string, error) {
	var msgs []string
	email := strings.TrimSpace(in.Email)
	if email != "" {
		exists, err := repo.EmailExists(ctx, email)
		if err != nil {
			return nil, err
		}
		if exists {
			msgs = append(msgs, domain.MsgEmailExists)
		}
	}
	return append(msgs, in.Validate()...), nil
}

func createCustomer(ctx context.Context, repo repository.CustomerRepository, in domain.CustomerInput) (domain.Customer, []string, error) {
	msgs, err := checkCustomer(ctx, repo, in)
	if err != nil || len(msgs) > 0 {
		return domain.Customer{}, msgs, err
	}
	created, err := repo.Create(ctx, domain.NewCustomer(in.Name, in.Email, in.Phone))
	if errors.Is(err, repository.ErrConflict) {
		return domain.Customer{}, []string{domain.MsgEmailExists}, nil
	}
	if err != nil {
		return domain.Customer{}, nil, err
	}
	return created, nil, nil
}

// CreateCustomer validates and stores one customer.
func (s *Service) CreateCustomer(ctx context.Context, in domain.CustomerInput) (CustomerPayload, error) {
	created, msgs, err := createCustomer(ctx, s.store.Customers(), in)
	if err != nil {
		return CustomerPayload{}, fmt.Errorf("create customer: %w", err)
	}
	if len(msgs) > 0 {
		return CustomerPayload{Errors: msgs}, nil
	}
	s.logger.Info("customer created", zap.Int64("id", created.ID))
	return CustomerPayload{Customer: &created, Message: domain.MsgCustomerCreated}, nil
}

// insertCustomer runs the insert under its own savepoint so a unique
// violation leaves the enclosing transaction usable.
func insertCustomer(ctx context.Context, tx repository.Store, in domain.CustomerInput) (domain.Customer, error) {
	var created domain.Customer
	err := tx.WithinTx(ctx, func(sp repository.Store) error {
		var err error
		created, err = sp.Customers().Create(ctx, domain.NewCustomer(in.Name, in.Email, in.Phone))
		return err
	})
	return created, err
}

// BulkCreateCustomers stores every valid input in one transaction. Invalid
// inputs are skipped and reported by their 1-based position. Only the first
// problem of each input is reported.
func (s *Service) BulkCreateCustomers(ctx context.Context, inputs []domain.CustomerInput) (BulkCustomersPayload, error) {
	var payload BulkCustomersPayload
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		payload = BulkCustomersPayload{Customers: []domain.Customer{}}
		for i, in := range inputs {
			msgs, err := checkCustomer(ctx, tx.Customers(), in)
			if err != nil {
				return fmt.Errorf("customer %d: %w", i+1, err)
			}
			if len(msgs) == 0 {
				created, err := insertCustomer(ctx, tx, in)
				switch {
				case errors.Is(err, repository.ErrConflict):
					msgs = []string{domain.MsgEmailExists}
				case err != nil:
					return fmt.Errorf("customer %d: %w", i+1, err)
				default:
					payload.Customers = append(payload.Customers, created)
					continue
				}
			}
			payload.Errors = append(payload.Errors, fmt.Sprintf("Customer %d: %s", i+1, msgs[0]))
		}
		return nil
	})
	if err != nil {
		return BulkCustomersPayload{}, fmt.Errorf("bulk create customers: %w", err)
	}
	s.logger.Info("bulk customer import finished",
		zap.Int("created", len(payload.Customers)),
		zap.Int("rejected", len(payload.Errors)))
	return payload, nil
}

// CreateProduct validates and stores a product.
func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (ProductPayload, error) {
	if msgs := in.Validate(); len(msgs) > 0 {
		return ProductPayload{Errors: msgs}, nil
	}
	created, err := s.store.Products().Create(ctx, domain.NewProduct(in.Name, in.Price, in.StockOrDefault()))
	if err != nil {
		return ProductPayload{}, fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("product created", zap.Int64("id", created.ID))
	return ProductPayload{Product: &created, Message: domain.MsgProductCreated}, nil
}

// CreateOrder stores an order for an existing customer. The total is the sum
// of the selected product prices and repeated product IDs count once.
func (s *Service) CreateOrder(ctx context.Context, in domain.OrderInput) (OrderPayload, error) {
	customer, err := s.store.Customers().GetByID(ctx, in.CustomerID)
	if errors.Is(err, domain.ErrNotFound) {
		return OrderPayload{Errors: []string{domain.MsgCustomerNotFound}}, nil
	}
	if err != nil {
		return OrderPayload{}, fmt.Errorf("create order: %w", err)
	}

	ids := lo.Uniq(in.ProductIDs)
	if len(ids) == 0 {
		return OrderPayload{Errors: []string{domain.MsgNoProducts}}, nil
	}
	products, err := s.store.Products().GetByIDs(ctx, ids)
	if err != nil {
		return OrderPayload{}, fmt.Errorf("create order: %w", err)
	}
	if len(products) != len(ids) {
		return OrderPayload{Errors: []string{domain.MsgProductsNotFound}}, nil
	}

	orderDate := lo.FromPtr(in.OrderDate)
	var created domain.Order
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().Create(ctx, domain.NewOrder(customer.ID, products, orderDate), ids)
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return OrderPayload{}, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info("order created",
		zap.Int64("id", created.ID),
		zap.Int64("customer_id", customer.ID),
		zap.String("total", created.TotalAmount.StringFixed(2)))
	return OrderPayload{Order: &created, Products: products, Message: domain.MsgOrderCreated}, nil
}
