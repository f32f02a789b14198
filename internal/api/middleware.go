package api

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/log"
)

// statusRecorder captures the response status for logging middleware.
// Hijack is forwarded so websocket upgrades keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// RequestID tags each request with an id, echoed in X-Request-ID and
// attached to the request-scoped logger. An incoming X-Request-ID is
// kept so ids stay stable across proxies.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := log.AppendArgsCtx(r.Context(), "request_id", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PerformanceLogging sets X-Process-Time on every response and warns on
// requests slower than slowThreshold. Auth requests are logged at info
// level so sign-in activity shows up without debug logging.
func PerformanceLogging(slowThreshold time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			rec.Header().Set("X-Process-Time", "0")

			next.ServeHTTP(&processTimeWriter{statusRecorder: rec, start: start}, r)

			elapsed := time.Since(start)
			if elapsed > slowThreshold {
				log.Warning(r.Context(), "Slow request",
					"method", r.Method, "endpoint", r.URL.Path,
					"duration", elapsed.String(), "status", rec.status)
			}
			if strings.HasPrefix(r.URL.Path, "/v1/auth") {
				log.Info(r.Context(), "Auth request",
					"method", r.Method, "endpoint", r.URL.Path,
					"duration", elapsed.String(), "status", rec.status)
			}
		})
	}
}

// processTimeWriter rewrites X-Process-Time right before headers flush,
// so the value covers handler time rather than middleware setup.
type processTimeWriter struct {
	*statusRecorder
	start       time.Time
	wroteHeader bool
}

func (w *processTimeWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Set("X-Process-Time", strconv.FormatFloat(time.Since(w.start).Seconds(), 'f', 6, 64))
	}
	w.statusRecorder.WriteHeader(status)
}

func (w *processTimeWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.statusRecorder.Write(b)
}

// rateLimiter tracks request timestamps per client IP over a sliding
// window.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	limit   int
	window  time.Duration
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
}

// allow prunes timestamps outside the window and admits the request if
// fewer than limit remain. retryAfter reports how long until the oldest
// tracked request leaves the window.
func (rl *rateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	kept := rl.clients[ip][:0]
	for _, t := range rl.clients[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.clients[ip] = kept
		return false, kept[0].Sub(cutoff)
	}
	rl.clients[ip] = append(kept, now)
	return true, 0
}

// RateLimit rejects clients above limit requests per window with 429.
// Health checks are exempt so orchestrators never get throttled.
func RateLimit(limit int, window time.Duration) Middleware {
	rl := newRateLimiter(limit, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" || r.URL.Path == "/health" || strings.HasPrefix(r.URL.Path, "/v1/health") {
				next.ServeHTTP(w, r)
				return
			}
			ok, retryAfter := rl.allow(ClientIP(r), time.Now())
			if !ok {
				seconds := int(retryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				resp := ErrorResponseDetails(http.StatusTooManyRequests,
					"Too many requests. Please try again later.",
					map[string]interface{}{"retry_after": seconds})
				writeJSON(w, resp)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the caller address behind the usual proxy headers.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// gzipBuffer collects the response so the size threshold can be checked
// before deciding to compress.
type gzipBuffer struct {
	http.ResponseWriter
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func (g *gzipBuffer) WriteHeader(status int) {
	if !g.wroteHeader {
		g.wroteHeader = true
		g.status = status
	}
}

func (g *gzipBuffer) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	return g.buf.Write(b)
}

// Gzip compresses responses of minSize bytes or more when the client
// accepts it. Websocket paths pass through untouched since upgrades
// need the raw connection.
func Gzip(minSize int) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/ws/") ||
				!strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			g := &gzipBuffer{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(g, r)

			if g.buf.Len() >= minSize {
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Del("Content-Length")
				w.WriteHeader(g.status)
				zw := gzip.NewWriter(w)
				_, _ = zw.Write(g.buf.Bytes())
				_ = zw.Close()
				return
			}
			w.WriteHeader(g.status)
			_, _ = w.Write(g.buf.Bytes())
		})
	}
}

// SecurityHeaders applies baseline hardening headers and disables
// caching for auth and websocket responses, which carry tokens.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			if strings.HasPrefix(r.URL.Path, "/v1/auth") || strings.HasPrefix(r.URL.Path, "/ws/") {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
			}
			if strings.HasPrefix(r.URL.Path, "/v1/auth") {
				h.Set("X-XSS-Protection", "1; mode=block")
			}
			next.ServeHTTP(w, r)
		})
	}
}

var csrfExemptPaths = map[string]struct{}{
	"/v1/auth/signup":        {},
	"/v1/auth/login":         {},
	"/v1/auth/refresh-token": {},
	"/v1/profiles/signup":    {},
}

// CSRFGuard enforces double-submit protection: when the csrf cookie is
// present on a mutating request, the X-CSRF-Token header must match it.
// Requests without the cookie (pure Bearer clients) are left alone.
func CSRFGuard() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}
			if _, exempt := csrfExemptPaths[r.URL.Path]; exempt || !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}
			cookie, err := r.Cookie(consts.CSRFTokenCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get(consts.CSRFHeader) != cookie.Value {
				log.Warning(r.Context(), "CSRF token mismatch",
					"method", r.Method, "endpoint", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				writeJSON(w, ErrorResponse(http.StatusForbidden, "CSRF token mismatch"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recovery turns panics into 500 responses instead of dropped
// connections.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "Panic while handling request",
						"panic", rec, "method", r.Method, "endpoint", r.URL.Path)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					writeJSON(w, ErrorResponse(http.StatusInternalServerError, "Internal Server Error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
