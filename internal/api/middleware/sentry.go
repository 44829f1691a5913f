package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

// SentryMiddleware traces each request as a transaction named after its route
// and tagged with the index operation the handler annotated. Without an
// initialized Sentry client the transaction is simply dropped.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if sentryTrace := r.Header.Get("sentry-trace"); sentryTrace != "" {
			options = append(options, sentry.ContinueFromHeaders(sentryTrace, r.Header.Get("baggage")))
		}

		transaction := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, options...)
		defer transaction.Finish()

		ctx := sentry.SetHubOnContext(transaction.Context(), hub)
		r = r.WithContext(ctx)

		if requestID := GetRequestID(ctx); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			transaction.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(ctx, err)
				panic(err)
			}
		}()

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.code()

		// The route pattern and annotation are only known once the router and handler ran.
		if route := routeOf(r); route != r.URL.Path {
			transaction.Name = r.Method + " " + route
			transaction.Source = sentry.SourceRoute
		}
		tagAnnotation(hub.Scope(), transaction, GetAnnotation(ctx))
		if clientID := GetClientID(ctx); clientID != "" {
			hub.Scope().SetTag("client_id", clientID)
			transaction.SetTag("client_id", clientID)
		}

		transaction.Status = httpStatusToSpanStatus(status)
		transaction.SetData("http.response.status_code", status)

		// Causes are captured by the spans that failed; this only flags the response.
		if status >= 500 {
			hub.CaptureMessage(fmt.Sprintf("%s answered %d", transaction.Name, status))
		}
	})
}

func tagAnnotation(scope *sentry.Scope, transaction *sentry.Span, a RequestAnnotation) {
	if a.Operation != "" {
		scope.SetTag("operation", a.Operation)
		transaction.SetTag("operation", a.Operation)
	}
	if len(a.Symbols) > 0 {
		symbols := strings.Join(a.Symbols, ",")
		scope.SetTag("symbol", symbols)
		transaction.SetTag("symbol", symbols)
	}
	if a.TopK > 0 {
		transaction.SetData("top_k", a.TopK)
	}
}

// httpStatusToSpanStatus maps the statuses newsrag answers with onto span statuses.
func httpStatusToSpanStatus(status int) sentry.SpanStatus {
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status == http.StatusUnauthorized:
		return sentry.SpanStatusUnauthenticated
	case status == http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case status == http.StatusConflict:
		// An empty index cannot answer yet.
		return sentry.SpanStatusFailedPrecondition
	case status == http.StatusRequestEntityTooLarge:
		return sentry.SpanStatusResourceExhausted
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	case status == http.StatusBadGateway:
		// Embedding or language model provider failed.
		return sentry.SpanStatusUnavailable
	case status == http.StatusServiceUnavailable:
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}
