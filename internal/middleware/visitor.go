package middleware

import (
	"context"
	"net/http"
	"strings"
)

// VisitorIDKey is the context key for the anonymous visitor id.
const VisitorIDKey ContextKey = "visitor_id"

const maxVisitorIDLen = 128

// Visitor stores the X-Visitor-ID header, the id the chat widget keeps in
// local storage, in the request context.
func Visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Visitor-ID"))
		if id == "" {
			id = r.URL.Query().Get("visitor_id")
		}
		if len(id) > maxVisitorIDLen {
			id = ""
		}
		if id != "" {
			r = r.WithContext(context.WithValue(r.Context(), VisitorIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// GetVisitorID gets the visitor id from context.
func GetVisitorID(ctx context.Context) string {
	if v, ok := ctx.Value(VisitorIDKey).(string); ok {
		return v
	}
	return ""
}
