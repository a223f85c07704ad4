package middleware

import "net/http"

const (
	// SessionHeader carries the chat session token on API requests.
	SessionHeader = "X-Session-Id"
	// AdminHeader carries the operator token for history administration.
	AdminHeader = "X-Admin-Token"
)

// CORS lets the browser front-end call the API from another origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader+", "+AdminHeader)
		h.Set("Access-Control-Expose-Headers", SessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
