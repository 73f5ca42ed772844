package middleware

import (
	"net/http"
	"strings"
)

// corsHeaders are the request headers dashboard clients send: JSON bodies for
// outcome feedback plus either auth scheme the API accepts.
const corsHeaders = "Content-Type, Authorization, X-API-Key"

// CORS returns middleware that answers cross-origin requests from signal
// dashboards. The API is read-mostly (snapshot, stream, status) with a single
// POST for outcome feedback, so only GET, POST, and OPTIONS are advertised.
// An empty allow-list permits every origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && originAllowed(allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
