package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cuebase/tracksearch/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID returns middleware that attaches a request ID to the context and
// echoes it in the response. An inbound X-Request-ID is honoured so the
// editor frontend can correlate its own calls.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), requestID)
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(r *http.Request) string {
	return logger.RequestIDFromContext(r.Context())
}
