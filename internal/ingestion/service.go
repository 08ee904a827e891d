package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingColumn is returned when a required column has no header.
	ErrMissingColumn = errors.New("missing required column")
	// ErrTooManyRows is returned when a file exceeds the row limit.
	ErrTooManyRows = errors.New("too many rows")
	// ErrInvalidFile is returned when the upload cannot be read as a table.
	ErrInvalidFile = errors.New("invalid file")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
	zipMagic      = []byte("PK\x03\x04")

	// header aliases accepted for each customer field
	columnAliases = map[string][]string{
		"name":  {"name", "full_name", "customer_name"},
		"email": {"email", "email_address", "e_mail"},
		"phone": {"phone", "phone_number", "telephone"},
	}
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultMaxRows  = 10000
)

// CustomerCreator stores a batch of customers.
type CustomerCreator interface {
	BulkCreateCustomers(ctx context.Context, inputs []domain.CustomerInput) (crm.BulkCustomersPayload, error)
}

// Service imports customers from tabular files.
type Service struct {
	customers CustomerCreator
	maxRows   int
	logger    *zap.Logger
}

// Option configures the service.
type Option func(*Service)

// WithMaxRows bounds the number of data rows accepted in one file.
func WithMaxRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new ingestion service.
func NewService(customers CustomerCreator, opts ...Option) *Service {
	s := &Service{customers: customers, maxRows: defaultMaxRows, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes the ingestion input.
type Request struct {
	FileName       string
	ContentType    string
	HeaderRowIndex *int
	Data           io.Reader
}

// Summary returns import level metrics.
type Summary struct {
	TotalRows   int               `json:"totalRows"`
	CreatedRows int               `json:"createdRows"`
	InvalidRows int               `json:"invalidRows"`
	Errors      []string          `json:"errors"`
	Customers   []domain.Customer `json:"customers"`
}

type tableData struct {
	headers        []string
	rows           [][]string
	headerRowIndex int
}

// ImportCustomers reads the uploaded file and creates one customer per data
// row in a single transaction. Rejected rows are reported as
// "Customer {n}: ..." where n counts data rows from 1.
func (s *Service) ImportCustomers(ctx context.Context, req Request) (Summary, error) {
	if req.Data == nil {
		return Summary{}, fmt.Errorf("%w: no data supplied", ErrInvalidFile)
	}
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read upload: %w", err)
	}

	table, err := parseTable(req.FileName, req.ContentType, payload, req.HeaderRowIndex)
	if err != nil {
		return Summary{}, err
	}
	if len(table.rows) > s.maxRows {
		return Summary{}, fmt.Errorf("%w: %d rows, limit is %d", ErrTooManyRows, len(table.rows), s.maxRows)
	}

	inputs, err := customerInputs(table)
	if err != nil {
		return Summary{}, err
	}

	result, err := s.customers.BulkCreateCustomers(ctx, inputs)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalRows:   len(inputs),
		CreatedRows: len(result.Customers),
		InvalidRows: len(result.Errors),
		Errors:      result.Errors,
		Customers:   result.Customers,
	}
	if summary.Errors == nil {
		summary.Errors = []string{}
	}
	s.logger.Info("customer import finished",
		zap.String("file", req.FileName),
		zap.Int("rows", summary.TotalRows),
		zap.Int("created", summary.CreatedRows),
		zap.Int("invalid", summary.InvalidRows))
	return summary, nil
}

func customerInputs(table tableData) ([]domain.CustomerInput, error) {
	columns := map[string]int{}
	for field, aliases := range columnAliases {
		for idx, header := range table.headers {
			if containsFold(aliases, header) {
				columns[field] = idx
				break
			}
		}
	}
	for _, required := range []string{"name", "email"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	inputs := make([]domain.CustomerInput, len(table.rows))
	for i, row := range table.rows {
		in := domain.CustomerInput{
			Name:  strings.TrimSpace(row[columns["name"]]),
			Email: strings.TrimSpace(row[columns["email"]]),
		}
		if idx, ok := columns["phone"]; ok {
			if phone := strings.TrimSpace(row[idx]); phone != "" {
				in.Phone = &phone
			}
		}
		inputs[i] = in
	}
	return inputs, nil
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func parseTable(fileName, contentType string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch {
	case ext == ".csv", mediaType == "text/csv":
		return parseCSV(payload, headerRowIndex)
	case ext == ".xlsx", mediaType == xlsxContentType:
		return parseExcel(payload, headerRowIndex)
	case ext == "" && bytes.HasPrefix(payload, zipMagic):
		return parseExcel(payload, headerRowIndex)
	case ext == "" && (mediaType == "" || mediaType == "text/plain" || mediaType == "application/octet-stream"):
		return parseCSV(payload, headerRowIndex)
	}
	if ext == "" {
		ext = mediaType
	}
	return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("%w: failed to read csv: %v", ErrInvalidFile, err)
	}
	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("%w: failed to open xlsx: %v", ErrInvalidFile, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, fmt.Errorf("%w: excel file has no sheets", ErrInvalidFile)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("%w: failed to read rows from xlsx: %v", ErrInvalidFile, err)
	}
	return normalizeTable(rows, headerRowIndex)
}

// normalizeTable picks the header row, either the requested one or the first
// non-blank row, and pads every data row to the header width.
func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, fmt.Errorf("%w: no rows found in file", ErrInvalidFile)
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("%w: header row %d out of range", ErrInvalidFile, *headerRowIndex+1)
		}
		if isBlank(records[*headerRowIndex]) {
			return tableData{}, fmt.Errorf("%w: selected header row %d is empty", ErrInvalidFile, *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		headerIndex = *headerRowIndex
		dataRows = records[*headerRowIndex+1:]
	} else {
		for idx, row := range records {
			if isBlank(row) {
				continue
			}
			headerRow = row
			headerIndex = idx
			dataRows = records[idx+1:]
			break
		}
	}

	if headerRow == nil {
		return tableData{}, fmt.Errorf("%w: header row could not be detected", ErrInvalidFile)
	}

	headers := sanitizeHeaders(headerRow)
	var rows [][]string
	for _, row := range dataRows {
		if isBlank(row) {
			continue
		}
		rows = append(rows, padRow(row, len(headers)))
	}

	return tableData{
		headers:        headers,
		rows:           rows,
		headerRowIndex: headerIndex,
	}, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.NewReplacer(" ", "_", ".", "_", "-", "_").Replace(name)
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
