package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rpattn/crmql/internal/logging"

	"github.com/99designs/gqlgen/graphql"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ResolverLoggerExtension logs resolver execution times. Logger falls back to
// the request scoped logger when nil.
type ResolverLoggerExtension struct {
	Logger *zap.Logger
}

var (
	_ graphql.HandlerExtension = (*ResolverLoggerExtension)(nil)
	_ graphql.FieldInterceptor = (*ResolverLoggerExtension)(nil)
)

// ExtensionName implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) ExtensionName() string {
	return "ResolverLogger"
}

// Validate implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

// InterceptField logs each resolver duration and errors
func (r *ResolverLoggerExtension) InterceptField(ctx context.Context, next graphql.Resolver) (res interface{}, err error) {
	start := time.Now()
	res, err = next(ctx)
	fc := graphql.GetFieldContext(ctx)
	if fc == nil || !fc.IsResolver {
		return res, err
	}

	logger := r.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	fields := []zap.Field{
		zap.String("object", fc.Object),
		zap.String("field", fc.Field.Name),
		zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	}
	if err != nil {
		logger.Warn("graphql resolver failed", append(fields, zap.Error(err))...)
		return res, err
	}
	logger.Debug("graphql resolver", fields...)
	return res, err
}

// LoggingMiddleware tags each request with an ID, stores a request scoped
// logger in the context and logs the outcome.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With(zap.String("request_id", requestID))
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r.WithContext(logging.WithLogger(r.Context(), reqLogger)))

			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
