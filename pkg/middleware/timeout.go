package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds each request. When the deadline passes before the handler
// has written anything, the client gets a 504 with the service's error
// envelope and the handler's eventual output is discarded; a handler that
// already started its response is left alone.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := &deadlineWriter{rw: w}
			done := make(chan struct{})
			go func() {
				next.ServeHTTP(dw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if dw.abandon() {
					slog.Warn("request timed out",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timed out"}`))
				}
			}
		})
	}
}

// deadlineWriter serialises the handler goroutine against the timeout path.
// Once abandoned, handler writes become no-ops so the timeout response is
// the only thing on the wire.
type deadlineWriter struct {
	mu        sync.Mutex
	rw        http.ResponseWriter
	started   bool
	abandoned bool
}

// abandon claims the response for the timeout path. It reports false when
// the handler wrote first, in which case the response belongs to it.
func (d *deadlineWriter) abandon() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return false
	}
	d.abandoned = true
	return true
}

func (d *deadlineWriter) Header() http.Header {
	return d.rw.Header()
}

func (d *deadlineWriter) WriteHeader(code int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.abandoned {
		return
	}
	d.started = true
	d.rw.WriteHeader(code)
}

func (d *deadlineWriter) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.abandoned {
		return len(b), nil
	}
	d.started = true
	return d.rw.Write(b)
}
