package middleware

import "net/http"

// SecurityPolicy is the set of response headers added to every reply.
// Zero-valued fields are omitted.
type SecurityPolicy struct {
	ContentTypeNosniff    bool
	FrameOptions          string
	ContentSecurityPolicy string
	ReferrerPolicy        string
}

// DefaultSecurityPolicy suits a JSON API that serves no HTML: framing
// and any active content are denied outright. HSTS is deliberately not
// set here because TLS is terminated by the reverse proxy, not by this
// service.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		ContentTypeNosniff:    true,
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}
}

// SecurityHeaders applies policy to every response before the handler
// runs, so error paths get the headers too.
func SecurityHeaders(policy SecurityPolicy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if policy.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if policy.FrameOptions != "" {
				h.Set("X-Frame-Options", policy.FrameOptions)
			}
			if policy.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", policy.ContentSecurityPolicy)
			}
			if policy.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", policy.ReferrerPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
