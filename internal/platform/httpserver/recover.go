package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/threadkit/internal/platform/api"
)

// Recoverer turns a handler panic into a 500 and logs it.
func Recoverer(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				rid := RequestIDFromContext(r.Context())
				log.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", rid))
				api.Internal(w, rid)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
