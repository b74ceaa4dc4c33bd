package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters for one profile.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the window.
	RequestsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit.
	Burst int
}

// Rate limit profiles. Overridable via RATELIMIT_{profile}_{field} env vars,
// which the test suites use to relax the limits.
var (
	// StrictLimit guards the anonymous auth endpoints (brute force surface).
	StrictLimit = RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	// ModerateLimit suits authenticated operations.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 60, Window: time.Minute, Burst: 60}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", ModerateLimit)
}

// ParseRateLimitFromEnv reads a rate limit profile from environment
// variables named RATELIMIT_{prefix}_REQUESTS, _WINDOW_SEC and _BURST.
func ParseRateLimitFromEnv(prefix string, defaults RateLimitConfig) RateLimitConfig {
	config := defaults

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}
	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}
	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor derives the grouping key for rate limiting from a request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address, honouring X-Forwarded-For
// and X-Real-IP for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// keyedLimiter manages one token bucket per key.
type keyedLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (kl *keyedLimiter) get(key string) *rate.Limiter {
	if limiter, ok := kl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(kl.rate, kl.burst)
	actual, _ := kl.limiters.LoadOrStore(key, limiter)

	kl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters so ephemeral keys cannot accumulate
// forever. A limiter with a full bucket has not been used for a while.
func (kl *keyedLimiter) maybeCleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if time.Since(kl.lastCleanup) < 5*time.Minute {
		return
	}
	kl.lastCleanup = time.Now()

	kl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(kl.burst) {
			kl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware enforces config per key extracted from the request.
// Rejected requests receive 429 with a Retry-After hint.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	kl := &keyedLimiter{
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       config.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyExtractor(r)
			if key == "" {
				// No key to group on; let the request through.
				next.ServeHTTP(w, r)
				return
			}

			if !kl.get(key).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(config.Window.Seconds())))
				WriteError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
