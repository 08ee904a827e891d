package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/crmql/internal/filter"
	"github.com/rpattn/crmql/internal/filtersets"
	"github.com/rpattn/crmql/internal/logging"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handler streams exports for GET /{entity}/export. The entity route
// variable is a collection name such as "orders"; every query parameter
// except format is a filter.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	entity, ok := filtersets.EntityForCollection(mux.Vars(r)["entity"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown entity"})
		return
	}
	query := r.URL.Query()
	format, err := ParseFormat(query.Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	out := &lazyHeaderWriter{
		ResponseWriter: w,
		contentType:    format.ContentType(),
		fileName:       h.service.FileName(mux.Vars(r)["entity"], format),
	}
	rows, err := h.service.Export(r.Context(), entity, format, filter.FromValues(query, "format"), out)
	logger := logging.FromContext(r.Context())
	if err != nil {
		if out.started {
			logger.Error("export aborted", zap.String("entity", entity), zap.Int("rows", rows), zap.Error(err))
			return
		}
		var verr *filter.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "filters": verr.Filters()})
			return
		}
		logger.Error("export failed", zap.String("entity", entity), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "export failed"})
		return
	}
	logger.Info("export finished", zap.String("entity", entity), zap.String("format", string(format)), zap.Int("rows", rows))
}

// lazyHeaderWriter sets the download headers on the first write so that
// errors found before any output can still be reported as JSON.
type lazyHeaderWriter struct {
	http.ResponseWriter
	contentType string
	fileName    string
	started     bool
}

func (l *lazyHeaderWriter) Write(p []byte) (int, error) {
	if !l.started {
		l.started = true
		l.Header().Set("Content-Type", l.contentType)
		l.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", l.fileName))
		l.WriteHeader(http.StatusOK)
	}
	return l.ResponseWriter.Write(p)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
