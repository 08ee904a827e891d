package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/domain"

	"github.com/xuri/excelize/v2"
)

type stubCreator struct {
	inputs []domain.CustomerInput
	err    error
}

func (s *stubCreator) BulkCreateCustomers(_ context.Context, inputs []domain.CustomerInput) (crm.BulkCustomersPayload, error) {
	s.inputs = inputs
	if s.err != nil {
		return crm.BulkCustomersPayload{}, s.err
	}
	out := crm.BulkCustomersPayload{Customers: []domain.Customer{}}
	for i, in := range inputs {
		if msgs := in.Validate(); len(msgs) > 0 {
			out.Errors = append(out.Errors, fmt.Sprintf("Customer %d: %s", i+1, msgs[0]))
			continue
		}
		out.Customers = append(out.Customers, domain.Customer{ID: int64(i + 1), Name: in.Name, Email: in.Email, Phone: in.Phone})
	}
	return out, nil
}

func TestImportCustomersFromCSV(t *testing.T) {
	creator := &stubCreator{}
	service := NewService(creator)

	data := "\xEF\xBB\xBFFull Name, Email Address,Phone\n" +
		"Alice Smith,alice@example.com,555-123-4567\n" +
		",,\n" +
		"Bob Jones,bob@example.com,\n" +
		"Nobody,not-an-email,\n"

	summary, err := service.ImportCustomers(context.Background(), Request{
		FileName: "customers.csv",
		Data:     strings.NewReader(data),
	})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if summary.TotalRows != 3 || summary.CreatedRows != 2 || summary.InvalidRows != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Errors) != 1 || !strings.HasPrefix(summary.Errors[0], "Customer 3: ") {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}
	if creator.inputs[0].Phone == nil || *creator.inputs[0].Phone != "555-123-4567" {
		t.Fatalf("expected phone to be mapped, got %+v", creator.inputs[0])
	}
	if creator.inputs[1].Phone != nil {
		t.Fatalf("expected blank phone to be nil, got %q", *creator.inputs[1].Phone)
	}
}

func TestImportCustomersFromXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Customer export"},
		{"name", "email"},
		{"Carol", "carol@example.com"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	creator := &stubCreator{}
	service := NewService(creator)
	headerRow := 1
	summary, err := service.ImportCustomers(context.Background(), Request{
		ContentType:    xlsxContentType,
		HeaderRowIndex: &headerRow,
		Data:           buf,
	})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if summary.CreatedRows != 1 || creator.inputs[0].Email != "carol@example.com" {
		t.Fatalf("unexpected summary: %+v inputs %+v", summary, creator.inputs)
	}
}

func TestImportCustomersRejectsBadFiles(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		opts []Option
		want error
	}{
		{
			name: "unsupported extension",
			req:  Request{FileName: "customers.json", Data: strings.NewReader("[]")},
			want: ErrUnsupportedFormat,
		},
		{
			name: "missing email column",
			req:  Request{FileName: "customers.csv", Data: strings.NewReader("name,phone\nAlice,1\n")},
			want: ErrMissingColumn,
		},
		{
			name: "empty file",
			req:  Request{FileName: "customers.csv", Data: strings.NewReader("")},
			want: ErrInvalidFile,
		},
		{
			name: "row limit",
			req:  Request{FileName: "customers.csv", Data: strings.NewReader("name,email\na,a@x.io\nb,b@x.io\n")},
			opts: []Option{WithMaxRows(1)},
			want: ErrTooManyRows,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creator := &stubCreator{}
			_, err := NewService(creator, tc.opts...).ImportCustomers(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if creator.inputs != nil {
				t.Fatalf("expected nothing to be created")
			}
		})
	}
}

func TestImportCustomersPropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("connection reset")
	service := NewService(&stubCreator{err: storeErr})
	_, err := service.ImportCustomers(context.Background(), Request{
		FileName: "customers.csv",
		Data:     strings.NewReader("name,email\nAlice,alice@example.com\n"),
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestSanitizeHeaders(t *testing.T) {
	got := sanitizeHeaders([]string{" Email ", "email", "", "Phone-Number"})
	want := []string{"email", "email_2", "column_3", "phone_number"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
