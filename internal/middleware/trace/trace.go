// Package trace logs the start and completion of every HTTP request.
package trace

import (
	"net/http"
	"sync/atomic"
	"time"

	"budgetwatch/internal/log"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Middleware handles request tracing and logging. It expects the request
// logger to be in the context already (see log.Middleware).
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.StructuredLogger
	metrics   Metrics
}

// Metrics tracks request counts
type Metrics struct {
	TotalRequests atomic.Int64
	ServerErrors  atomic.Int64
}

func NewMiddleware(logger *log.StructuredLogger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		m.logger.LogHTTPStart(ctx, r, clientIP)
		m.metrics.TotalRequests.Add(1)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= 500 {
			m.metrics.ServerErrors.Add(1)
		}
		m.logger.LogHTTPEnd(ctx, r, status, time.Since(start).Milliseconds(), clientIP)
	})
}

// Snapshot returns the current counters.
func (m *Middleware) Snapshot() (total, serverErrors int64) {
	return m.metrics.TotalRequests.Load(), m.metrics.ServerErrors.Load()
}
