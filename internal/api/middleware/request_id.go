package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	RequestIDKey   contextKey = "request_id"
	requestInfoKey contextKey = "request_info"
)

// requestInfo is shared by pointer so values found by inner handlers reach
// the outer logging and tracing middleware.
type requestInfo struct {
	clientID   string
	annotation RequestAnnotation
}

// RequestAnnotation describes what a request asked of the index. Handlers
// record it with Annotate once the body is decoded.
type RequestAnnotation struct {
	// Operation is one of query, outlook, competitor or status
	Operation string
	TopK      int
	Symbols   []string
}

// Annotate records a on the request so AccessLog and SentryMiddleware can
// report it. Requests that did not pass through RequestID are left alone.
func Annotate(ctx context.Context, a RequestAnnotation) {
	if info := getRequestInfo(ctx); info != nil {
		info.annotation = a
	}
}

// GetAnnotation returns what the handler recorded with Annotate.
func GetAnnotation(ctx context.Context) RequestAnnotation {
	if info := getRequestInfo(ctx); info != nil {
		return info.annotation
	}
	return RequestAnnotation{}
}

// RequestID injects a request ID into context and response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = context.WithValue(ctx, requestInfoKey, &requestInfo{})
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

func getRequestInfo(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return info
}
