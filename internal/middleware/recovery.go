package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nfxvault/tlscertd/internal/observability"
)

// Recovery converts a panicking handler into a 500 response. It sits
// outermost in the chain so that panics in the other middleware are
// caught too. The abort sentinel used by http.ErrAbortHandler is
// re-raised so the server can tear the connection down as intended.
func Recovery(logger observability.Logger) Middleware {
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
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				logger.Error(r.Context(), err, "handler panicked",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.String("stack", string(debug.Stack())),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"success":false,"message":"internal server error"}`))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
