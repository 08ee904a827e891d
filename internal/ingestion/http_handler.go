package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/crmql/internal/logging"

	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

// Handler exposes customer import as an HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST endpoint. The file is read
// from the multipart field "file", or from the raw body when the request is
// not multipart, in which case the filename query parameter names it.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	req, cleanup, err := uploadRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	defer cleanup()

	summary, err := h.service.ImportCustomers(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if !isClientError(err) {
			status = http.StatusInternalServerError
			logging.FromContext(r.Context()).Error("customer import failed", zap.Error(err))
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}

	status := http.StatusOK
	if summary.CreatedRows > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, summary)
}

func uploadRequest(r *http.Request) (Request, func(), error) {
	noop := func() {}
	headerRow, err := headerRowParam(r)
	if err != nil {
		return Request{}, noop, err
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return Request{
			FileName:       strings.TrimSpace(r.URL.Query().Get("filename")),
			ContentType:    r.Header.Get("Content-Type"),
			HeaderRowIndex: headerRow,
			Data:           r.Body,
		}, noop, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return Request{}, noop, fmt.Errorf("invalid form data: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return Request{}, noop, fmt.Errorf("file required: %w", err)
	}
	return Request{
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		HeaderRowIndex: headerRow,
		Data:           file,
	}, func() { _ = file.Close() }, nil
}

// headerRowParam reads the optional 1-based headerRow query parameter.
func headerRowParam(r *http.Request) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("headerRow"))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return nil, errors.New("headerRow must be a positive integer")
	}
	idx := n - 1
	return &idx, nil
}

func isClientError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrTooManyRows) ||
		errors.Is(err, ErrInvalidFile) ||
		errors.As(err, &maxErr)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
