package kit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type logFieldsKey struct{}

// logFields collects per-request fields that inner handlers attach to the
// access log line written by Logging.
type logFields struct {
	mu     sync.Mutex
	fields []zap.Field
}

// AddLogFields attaches fields to the access log line of the current request.
// It is a no-op outside a Logging middleware.
func AddLogFields(ctx context.Context, fields ...zap.Field) {
	lf, ok := ctx.Value(logFieldsKey{}).(*logFields)
	if !ok {
		return
	}
	lf.mu.Lock()
	lf.fields = append(lf.fields, fields...)
	lf.mu.Unlock()
}

func Recoverer(next http.Handler) http.Handler {
	return middleware.Recoverer(next)
}

// Logging writes one access log line per request. Fields added with
// AddLogFields (operator, item, error) are appended; requests that end in a
// 4xx or 5xx are logged at warn.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			lf := &logFields{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), logFieldsKey{}, lf)))

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			}
			lf.mu.Lock()
			fields = append(fields, lf.fields...)
			lf.mu.Unlock()

			if ww.Status() >= http.StatusBadRequest {
				log.Warn("request", fields...)
				return
			}
			log.Info("request", fields...)
		})
	}
}
