package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		ok, _ := rl.allow("10.0.0.1", now.Add(time.Duration(i)*time.Second))
		assert.True(t, ok)
	}
	ok, retryAfter := rl.allow("10.0.0.1", now.Add(3*time.Second))
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))

	// Another client is unaffected.
	ok, _ = rl.allow("10.0.0.2", now.Add(3*time.Second))
	assert.True(t, ok)

	// Once the oldest request leaves the window the client is admitted again.
	ok, _ = rl.allow("10.0.0.1", now.Add(time.Minute+time.Second))
	assert.True(t, ok)
}

func TestRateLimit_Returns429(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/salons", nil)
	request.RemoteAddr = "203.0.113.7:54321"

	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, http.StatusOK, responseRecorder.Code)

	responseRecorder = httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, http.StatusTooManyRequests, responseRecorder.Code)
	assert.NotEmpty(t, responseRecorder.Header().Get("Retry-After"))
	assert.Contains(t, responseRecorder.Body.String(), "Too many requests. Please try again later.")
	assert.Contains(t, responseRecorder.Body.String(), "retry_after")
}

func TestRateLimit_HealthExempt(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		request := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		request.RemoteAddr = "203.0.113.7:54321"
		responseRecorder := httptest.NewRecorder()
		handler.ServeHTTP(responseRecorder, request)
		assert.Equal(t, http.StatusOK, responseRecorder.Code)
	}
}

func TestGzip_CompressesLargeResponses(t *testing.T) {
	payload := strings.Repeat(`{"key":"value"}`, 100)
	handler := Gzip(500)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/salons", nil)
	request.Header.Set("Accept-Encoding", "gzip")
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)

	require.Equal(t, "gzip", responseRecorder.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(responseRecorder.Body)
	require.NoError(t, err)
	decompressed, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, payload, string(decompressed))
}

func TestGzip_SkipsSmallResponses(t *testing.T) {
	handler := Gzip(500)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	request.Header.Set("Accept-Encoding", "gzip")
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)

	assert.Empty(t, responseRecorder.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"ok":true}`, responseRecorder.Body.String())
}

func TestGzip_SkipsClientsWithoutGzip(t *testing.T) {
	payload := strings.Repeat("x", 1000)
	handler := Gzip(500)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/salons", nil)
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)

	assert.Empty(t, responseRecorder.Header().Get("Content-Encoding"))
	assert.Equal(t, payload, responseRecorder.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)

	assert.Equal(t, "nosniff", responseRecorder.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", responseRecorder.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", responseRecorder.Header().Get("Cache-Control"))
	assert.Equal(t, "1; mode=block", responseRecorder.Header().Get("X-XSS-Protection"))

	request = httptest.NewRequest(http.MethodGet, "/v1/salons", nil)
	responseRecorder = httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)

	assert.Equal(t, "nosniff", responseRecorder.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, responseRecorder.Header().Get("Cache-Control"))
	assert.Empty(t, responseRecorder.Header().Get("X-XSS-Protection"))
}

func TestCSRFGuard(t *testing.T) {
	handler := CSRFGuard()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Mutating request with mismatched header is rejected.
	request := httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
	request.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
	request.Header.Set("X-CSRF-Token", "wrong")
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, http.StatusForbidden, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "CSRF token mismatch")

	// Matching token passes.
	request = httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
	request.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
	request.Header.Set("X-CSRF-Token", "expected")
	responseRecorder = httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, http.StatusOK, responseRecorder.Code)

	// Bearer-only clients without the cookie are left alone.
	request = httptest.NewRequest(http.MethodDelete, "/v1/appointments/1", nil)
	responseRecorder = httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, http.StatusOK, responseRecorder.Code)

	// Login is exempt even when a stale cookie is present.
	request = httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	request.AddCookie(&http.Cookie{Name: "csrf_token", Value: "stale"})
	responseRecorder = httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, http.StatusOK, responseRecorder.Code)

	// Reads are never checked.
	request = httptest.NewRequest(http.MethodGet, "/v1/appointments", nil)
	request.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
	responseRecorder = httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, http.StatusOK, responseRecorder.Code)
}

func TestRecovery(t *testing.T) {
	handler := Recovery()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/salons", nil)
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)

	assert.Equal(t, http.StatusInternalServerError, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Internal Server Error")
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/salons", nil)
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.NotEmpty(t, responseRecorder.Header().Get("X-Request-ID"))

	// A client-supplied id is kept.
	request = httptest.NewRequest(http.MethodGet, "/v1/salons", nil)
	request.Header.Set("X-Request-ID", "req-abc")
	responseRecorder = httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)
	assert.Equal(t, "req-abc", responseRecorder.Header().Get("X-Request-ID"))
}

func TestPerformanceLogging_SetsProcessTime(t *testing.T) {
	handler := PerformanceLogging(2*time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	responseRecorder := httptest.NewRecorder()
	handler.ServeHTTP(responseRecorder, request)

	assert.Equal(t, http.StatusOK, responseRecorder.Code)
	assert.NotEmpty(t, responseRecorder.Header().Get("X-Process-Time"))
}

func TestClientIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "192.0.2.10:4242"
	assert.Equal(t, "192.0.2.10", ClientIP(request))

	request.Header.Set("X-Forwarded-For", "198.51.100.3, 10.0.0.1")
	assert.Equal(t, "198.51.100.3", ClientIP(request))

	request.Header.Del("X-Forwarded-For")
	request.Header.Set("X-Real-Ip", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", ClientIP(request))
}
