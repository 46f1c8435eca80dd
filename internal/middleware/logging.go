package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nfxvault/tlscertd/internal/observability"
)

// RequestLogging stamps every request with an id (honoring an inbound
// X-Request-ID from the reverse proxy, minting a UUID otherwise) and
// logs one line per completed request with status, size and duration.
func RequestLogging(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			r = r.WithContext(withRequestID(r.Context(), id))
			w.Header().Set("X-Request-ID", id)

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			logger.Info(r.Context(), "http request",
				observability.RequestID(id),
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", sw.status),
				observability.Int64("bytes", sw.bytes),
				observability.Duration("duration", time.Since(start)),
				observability.String("client", clientIP(r)),
			)
		})
	}
}

// clientIP prefers the reverse proxy's X-Forwarded-For over the socket
// peer, since the API role always sits behind the proxy whose pool it
// manages.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
