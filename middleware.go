package ordextract

import "net/http"

// contentSecurityPolicy keeps inscription content from loading anything
// outside itself when opened in a browser.
const contentSecurityPolicy = "default-src 'self' 'unsafe-eval' 'unsafe-inline' data: blob:; sandbox allow-scripts"

// ResponseHeaderMiddleware names the server and, since every inscription is
// untrusted content, turns off MIME sniffing and sandboxes the response.
func ResponseHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Server", HttpHeaderUserAgent)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		next.ServeHTTP(w, r)
	})
}
