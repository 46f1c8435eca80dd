package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSPolicy controls cross-origin access to the API.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSPolicy allows any origin without credentials, which is
// safe for an API whose auth lives at the reverse proxy.
func DefaultCORSPolicy() CORSPolicy {
	return CORSPolicy{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         600,
	}
}

// CORS answers preflight OPTIONS requests itself and decorates all
// other responses with the allow headers. Requests from origins not in
// the policy pass through untouched; the browser enforces the denial.
func CORS(policy CORSPolicy) Middleware {
	methods := strings.Join(policy.AllowedMethods, ", ")
	headers := strings.Join(policy.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !policy.originAllowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if policy.AllowCredentials {
				// The wildcard is not valid together with credentials;
				// echo the concrete origin instead.
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			} else if len(policy.AllowedOrigins) == 1 && policy.AllowedOrigins[0] == "*" {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if policy.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(policy.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (p CORSPolicy) originAllowed(origin string) bool {
	for _, allowed := range p.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
