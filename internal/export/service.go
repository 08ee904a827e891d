package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"
	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"
	"github.com/rpattn/crmql/internal/repository"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnknownEntity is returned for entities that cannot be exported.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnsupportedFormat is returned for formats other than csv and xlsx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv or xlsx in any case. Blank means csv.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
}

// ContentType returns the MIME type of files in this format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Source is the read side of the CRM service used by exports.
type Source interface {
	ListCustomers(ctx context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Customer], error)
	ListProducts(ctx context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Product], error)
	ListOrders(ctx context.Context, req filter.Request, page repository.Page) (crm.Listing[domain.Order], error)
	CustomersByID(ctx context.Context, ids []int64) (map[int64]domain.Customer, error)
	ProductsForOrders(ctx context.Context, orderIDs []int64) (map[int64][]domain.Product, error)
}

// Service writes filtered listings as CSV or XLSX files.
type Service struct {
	source   Source
	pageSize int
	maxRows  int
	now      func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithPageSize sets how many rows are fetched per query.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithMaxRows caps the rows written to one file. Zero means no cap.
func WithMaxRows(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRows = n
		}
	}
}

// NewService creates an export service over source.
func NewService(source Source, opts ...Option) *Service {
	service := &Service{
		source:   source,
		pageSize: 1000,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// FileName returns the download name for an export of entity.
func (s *Service) FileName(entity string, format Format) string {
	return fmt.Sprintf("%s-%s.%s", sanitizeFileComponent(entity), s.now().UTC().Format("20060102-150405"), format)
}

// Export writes every row of entity matching req to w and returns the number
// of data rows written. The first page is fetched before anything is written,
// so an invalid filter leaves w untouched.
func (s *Service) Export(ctx context.Context, entity string, format Format, req filter.Request, w io.Writer) (int, error) {
	tbl, ok := s.tables()[entity]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	page := repository.Page{Limit: s.pageSize}
	if s.maxRows > 0 && s.maxRows < page.Limit {
		page.Limit = s.maxRows
	}
	rows, total, err := tbl.fetch(ctx, req, page)
	if err != nil {
		return 0, err
	}

	out, err := newRowWriter(format, w)
	if err != nil {
		return 0, err
	}
	if err := out.WriteRow(toAny(tbl.headers)); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	written := 0
	for {
		for _, row := range rows {
			if s.maxRows > 0 && written >= s.maxRows {
				break
			}
			if err := out.WriteRow(row); err != nil {
				return written, fmt.Errorf("write row %d: %w", written+1, err)
			}
			written++
		}
		page.Offset += len(rows)
		if len(rows) == 0 || page.Offset >= total || (s.maxRows > 0 && written >= s.maxRows) {
			break
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if rows, total, err = tbl.fetch(ctx, req, page); err != nil {
			return written, err
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("finish %s export: %w", format, err)
	}
	return written, nil
}

type table struct {
	headers []string
	fetch   func(ctx context.Context, req filter.Request, page repository.Page) ([][]any, int, error)
}

func (s *Service) tables() map[string]table {
	return map[string]table{
		filtersets.CustomerEntity: {
			headers: []string{"ID", "Name", "Email", "Phone", "Created At"},
			fetch:   s.customerRows,
		},
		filtersets.ProductEntity: {
			headers: []string{"ID", "Name", "Price", "Stock", "Created At"},
			fetch:   s.productRows,
		},
		filtersets.OrderEntity: {
			headers: []string{"ID", "Customer", "Email", "Products", "Total Amount", "Order Date"},
			fetch:   s.orderRows,
		},
	}
}

func (s *Service) customerRows(ctx context.Context, req filter.Request, page repository.Page) ([][]any, int, error) {
	listing, err := s.source.ListCustomers(ctx, req, page)
	if err != nil {
		return nil, 0, err
	}
	rows := lo.Map(listing.Items, func(c domain.Customer, _ int) []any {
		return []any{c.ID, c.Name, c.Email, c.PhoneValue(), c.CreatedAt}
	})
	return rows, listing.TotalCount, nil
}

func (s *Service) productRows(ctx context.Context, req filter.Request, page repository.Page) ([][]any, int, error) {
	listing, err := s.source.ListProducts(ctx, req, page)
	if err != nil {
		return nil, 0, err
	}
	rows := lo.Map(listing.Items, func(p domain.Product, _ int) []any {
		return []any{p.ID, p.Name, p.Price, p.Stock, p.CreatedAt}
	})
	return rows, listing.TotalCount, nil
}

func (s *Service) orderRows(ctx context.Context, req filter.Request, page repository.Page) ([][]any, int, error) {
	listing, err := s.source.ListOrders(ctx, req, page)
	if err != nil {
		return nil, 0, err
	}
	customers, err := s.source.CustomersByID(ctx, lo.Map(listing.Items, func(o domain.Order, _ int) int64 { return o.CustomerID }))
	if err != nil {
		return nil, 0, fmt.Errorf("load order customers: %w", err)
	}
	products, err := s.source.ProductsForOrders(ctx, lo.Map(listing.Items, func(o domain.Order, _ int) int64 { return o.ID }))
	if err != nil {
		return nil, 0, fmt.Errorf("load order products: %w", err)
	}
	rows := lo.Map(listing.Items, func(o domain.Order, _ int) []any {
		customer := customers[o.CustomerID]
		names := lo.Map(products[o.ID], func(p domain.Product, _ int) string { return p.Name })
		return []any{o.ID, customer.Name, customer.Email, strings.Join(names, ", "), o.TotalAmount, o.OrderDate}
	})
	return rows, listing.TotalCount, nil
}

type rowWriter interface {
	WriteRow(values []any) error
	Close() error
}

func newRowWriter(format Format, w io.Writer) (rowWriter, error) {
	switch format {
	case FormatCSV, "":
		buffered := bufio.NewWriter(w)
		return &csvWriter{buf: buffered, csv: csv.NewWriter(buffered)}, nil
	case FormatXLSX:
		return newXLSXWriter(w)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

type csvWriter struct {
	buf *bufio.Writer
	csv *csv.Writer
}

func (c *csvWriter) WriteRow(values []any) error {
	return c.csv.Write(lo.Map(values, func(v any, _ int) string { return formatValue(v) }))
}

func (c *csvWriter) Close() error {
	c.csv.Flush()
	if err := c.csv.Error(); err != nil {
		return err
	}
	return c.buf.Flush()
}

// xlsxWriter streams rows into the first sheet of a new workbook. The
// workbook is written to the destination on Close.
type xlsxWriter struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	dst    io.Writer
	row    int
}

func newXLSXWriter(dst io.Writer) (*xlsxWriter, error) {
	f := excelize.NewFile()
	stream, err := f.NewStreamWriter(f.GetSheetName(0))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create xlsx stream: %w", err)
	}
	return &xlsxWriter{file: f, stream: stream, dst: dst}, nil
}

func (x *xlsxWriter) WriteRow(values []any) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	return x.stream.SetRow(cell, lo.Map(values, func(v any, _ int) any { return cellValue(v) }))
}

func (x *xlsxWriter) Close() error {
	defer func() { _ = x.file.Close() }()
	if err := x.stream.Flush(); err != nil {
		return err
	}
	_, err := x.file.WriteTo(x.dst)
	return err
}

// cellValue keeps numbers numeric in spreadsheets and formats the rest as
// text.
func cellValue(value any) any {
	switch v := value.(type) {
	case int, int64:
		return v
	case decimal.Decimal:
		f, _ := v.Round(2).Float64()
		return f
	}
	return formatValue(value)
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case decimal.Decimal:
		return v.StringFixed(2)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case *string:
		return lo.FromPtr(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", value)
}

func toAny(values []string) []any {
	return lo.Map(values, func(v string, _ int) any { return v })
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}
