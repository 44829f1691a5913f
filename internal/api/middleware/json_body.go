package middleware

import (
	"mime"
	"net/http"

	"github.com/cloo-solutions/newsrag/internal/api"
)

// JSONBody guards request bodies: questions and report requests are small JSON
// documents, so anything declared as another media type is refused with 415
// and anything over limit bytes with 413. A missing Content-Type is accepted.
func JSONBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if contentType := r.Header.Get("Content-Type"); contentType != "" {
				mediaType, _, err := mime.ParseMediaType(contentType)
				if err != nil || mediaType != "application/json" {
					api.Error(w, http.StatusUnsupportedMediaType, "request body must be application/json")
					return
				}
			}

			if limit > 0 {
				if r.ContentLength > limit {
					api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
