package middleware

import (
	"net/http"

	"github.com/convoflow-ai/convoflow/internal/api"
)

// MaxBodyBytes rejects requests whose body exceeds limit. Oversized uploads
// with a declared Content-Length fail fast with 413; chunked requests are
// cut off by MaxBytesReader mid-read.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
