// security.go - Security headers on every response.
package server

import "net/http"

// securityHeadersMiddleware sets browser security headers. The surface is a
// JSON API plus attachment downloads, so the CSP denies everything and the
// frame options stop the download endpoint being embedded.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
