package middleware

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthPath is polled by supervisors and the watch loop; successful checks are not logged.
const healthPath = "/health"

type accessLogEntry struct {
	Timestamp  string   `json:"ts"`
	Method     string   `json:"method"`
	Route      string   `json:"route"`
	Status     int      `json:"status"`
	Bytes      int      `json:"bytes"`
	DurationMS int64    `json:"duration_ms"`
	Operation  string   `json:"op,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
	Symbols    []string `json:"symbols,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
	RemoteAddr string   `json:"remote_addr,omitempty"`
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// AccessLog writes one JSON line per request with what the request asked of
// the index: the operation, its top_k and any ticker symbols.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.code()
		if r.URL.Path == healthPath && status == http.StatusOK {
			return
		}

		annotation := GetAnnotation(r.Context())
		entry := accessLogEntry{
			Timestamp:  start.UTC().Format(time.RFC3339Nano),
			Method:     r.Method,
			Route:      routeOf(r),
			Status:     status,
			Bytes:      rec.bytes,
			DurationMS: time.Since(start).Milliseconds(),
			Operation:  annotation.Operation,
			TopK:       annotation.TopK,
			Symbols:    annotation.Symbols,
			RequestID:  GetRequestID(r.Context()),
			ClientID:   GetClientID(r.Context()),
			RemoteAddr: clientIP(r),
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			log.Printf("access log: %v", err)
			return
		}
		log.Println(string(payload))
	})
}

// routeOf returns the chi pattern that served r, or the raw path when no
// route matched. Patterns keep log and trace names bounded.
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
