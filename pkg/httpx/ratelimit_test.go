package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddlewareBlocksAfterBurst(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	handler := RateLimitMiddleware(cfg, IPKeyExtractor)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitMiddlewareIsolatesKeys(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	handler := RateLimitMiddleware(cfg, IPKeyExtractor)(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/login", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same IP is now exhausted.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different IP still gets through.
	other := httptest.NewRequest(http.MethodPost, "/login", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIPKeyExtractorPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", IPKeyExtractor(req))

	req.Header.Set("X-Real-IP", "172.16.0.9")
	require.Equal(t, "172.16.0.9", IPKeyExtractor(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 172.16.0.9")
	require.Equal(t, "203.0.113.7", IPKeyExtractor(req))
}
