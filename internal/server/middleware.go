package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

const maxRequestIDLen = 128

// Pre-allocated header value slices for security headers. Direct map
// assignment avoids the []string{v} alloc that Header.Set creates.
var (
	nosniffVal = []string{"nosniff"}
	denyVal    = []string{"DENY"}
)

// statusWriterPool eliminates a &statusWriter{} heap escape per request.
// Fields are reset on Get and the wrapped ResponseWriter is cleared on Put
// so the pool doesn't retain a reference past the request's lifetime.
var statusWriterPool = sync.Pool{
	New: func() any { return &statusWriter{status: http.StatusOK} },
}

// securityHeaders sets defense-in-depth response headers on every request.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h["X-Content-Type-Options"] = nosniffVal
		h["X-Frame-Options"] = denyVal
		next.ServeHTTP(w, r)
	})
}

// recovery catches panics in handlers and returns 500 instead of crashing
// the listener goroutine.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
					slog.Any("error", rec),
					slog.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader is already in canonical MIME form so direct map access
// skips textproto.CanonicalMIMEHeaderKey on every request.
const requestIDHeader = "X-Request-Id"

// requestID attaches a UUIDv7 request ID to the context and response header.
// A client-supplied ID is honored if it passes isValidToken; otherwise a
// fresh one is minted.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if vals := r.Header[requestIDHeader]; len(vals) > 0 && isValidToken(vals[0], maxRequestIDLen) {
			id = vals[0]
		} else {
			id = uuid.Must(uuid.NewV7()).String()
		}
		w.Header()[requestIDHeader] = []string{id}
		ctx := oracle.ContextWithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isValidToken reports whether s is non-empty, at most maxLen bytes, and
// contains only [a-zA-Z0-9._-].
func isValidToken(s string, maxLen int) bool {
	if len(s) == 0 || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-') {
			return false
		}
	}
	return true
}

// logging logs each request's method, path, status, and duration.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := statusWriterPool.Get().(*statusWriter)
		sw.ResponseWriter = w
		sw.status = http.StatusOK
		sw.wroteHeader = false

		next.ServeHTTP(sw, r)

		slog.LogAttrs(r.Context(), slog.LevelInfo, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("request_id", oracle.RequestIDFromContext(r.Context())),
		)
		sw.ResponseWriter = nil
		statusWriterPool.Put(sw)
	})
}

// authenticate validates the admin bearer token and injects the Identity
// into request context. Unauthenticated callers are rejected outright --
// this middleware only wraps the admin route group, never the cache proxy.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse("missing bearer token"))
			return
		}
		identity, err := s.deps.Auth.Verify(token)
		if err != nil {
			writeJSON(w, errorStatus(err), errorResponse(err.Error()))
			return
		}
		ctx := oracle.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return ""
	}
	return h[len(prefix):]
}

// requireAdmin rejects callers whose Identity does not carry the admin role.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := oracle.IdentityFromContext(r.Context())
		if !identity.IsAdmin() {
			writeJSON(w, http.StatusForbidden, errorResponse("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeRateLimit rejects admin writes once the caller's per-minute write
// budget is exhausted. Read-only admin routes (GET) are never limited.
func (s *Server) writeRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || s.deps.WriteLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		identity := oracle.IdentityFromContext(r.Context())
		subject := ""
		if identity != nil {
			subject = identity.Subject
		}
		if !s.deps.WriteLimiter.Allow(subject) {
			if s.deps.Metrics != nil {
				s.deps.Metrics.RateLimitRejects.WithLabelValues("write").Inc()
			}
			writeJSON(w, http.StatusTooManyRequests, errorResponse("write rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code ultimately
// written, for logging and metrics. Only the first WriteHeader call is
// recorded, matching net/http's own semantics.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

// Flush delegates to the underlying ResponseWriter so SSE streaming works
// through the middleware chain.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController see through the wrapper.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// statusText maps status codes to pre-allocated strings, avoiding a
// strconv.Itoa allocation per request in the metrics middleware.
var statusText [600]string

func init() {
	for i := range statusText {
		statusText[i] = strconv.Itoa(i)
	}
}

// metricsMiddleware records request count, duration, and active-request
// gauge. A nil Metrics disables it.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	m := s.deps.Metrics
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		start := time.Now()

		sw := statusWriterPool.Get().(*statusWriter)
		sw.ResponseWriter = w
		sw.status = http.StatusOK
		sw.wroteHeader = false

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start).Seconds()
		status := sw.status
		sw.ResponseWriter = nil
		statusWriterPool.Put(sw)

		m.ActiveRequests.Dec()

		pattern := routePattern(r)
		statusStr := "other"
		if status >= 0 && status < len(statusText) {
			statusStr = statusText[status]
		}
		m.RequestsTotal.WithLabelValues(r.Method, pattern, statusStr).Inc()
		m.RequestDuration.WithLabelValues(r.Method, pattern).Observe(elapsed)
	})
}

// routePattern returns the chi route pattern for bounded label cardinality,
// falling back to the raw path outside chi routing.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// tracingMiddleware starts a span per request when tracing is configured.
func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	tracer := s.deps.Tracer
	if tracer == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.Path),
				attribute.String("http.request_id", oracle.RequestIDFromContext(r.Context())),
			),
		)
		defer span.End()

		sw := statusWriterPool.Get().(*statusWriter)
		sw.ResponseWriter = w
		sw.status = http.StatusOK
		sw.wroteHeader = false

		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		sw.ResponseWriter = nil
		statusWriterPool.Put(sw)
	})
}
