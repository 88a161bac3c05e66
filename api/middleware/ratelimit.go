package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// The gateway serves two kinds of traffic: cheap reads (status, prices,
// queue listings) and writes that reach the keeper (posting a price point,
// submitting a crank batch in standalone mode). Writes get a much smaller
// bucket; a cranker gains nothing by submitting faster than the queue
// drains, so the write rate tracks the crank cadence rather than raw
// request throughput.

// RateLimitConfig sets per-IP token bucket rates for each traffic class.
type RateLimitConfig struct {
	ReadPerSecond  float64
	ReadBurst      float64
	WritePerSecond float64
	WriteBurst     float64
	// How long an IP stays blocked after draining its bucket.
	BlockDuration time.Duration
	// Idle buckets are dropped after this long.
	BucketTTL       time.Duration
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the default limits.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		ReadPerSecond:   100,
		ReadBurst:       200,
		WritePerSecond:  5,
		WriteBurst:      10,
		BlockDuration:   time.Minute,
		BucketTTL:       time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

type bucket struct {
	tokens       float64
	burst        float64
	refillRate   float64
	lastUpdate   time.Time
	blockedUntil time.Time
}

// RateLimiter tracks one token bucket per (class, IP) pair.
type RateLimiter struct {
	config  *RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	ticker  *time.Ticker
	stopCh  chan struct{}
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		ticker:  time.NewTicker(config.CleanupInterval),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop halts the cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.ticker.Stop()
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	threshold := rl.now().Add(-rl.config.BucketTTL)
	rl.mu.Lock()
	for key, b := range rl.buckets {
		if b.lastUpdate.Before(threshold) {
			delete(rl.buckets, key)
		}
	}
	rl.mu.Unlock()
}

// allow consumes one token from the (class, ip) bucket. It returns whether
// the request may proceed, the tokens remaining, and a retry-after hint in
// seconds when it may not.
func (rl *RateLimiter) allow(class, ip string) (bool, int, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := class + ":" + ip
	b, ok := rl.buckets[key]
	if !ok {
		burst, rate := rl.config.ReadBurst, rl.config.ReadPerSecond
		if class == "write" {
			burst, rate = rl.config.WriteBurst, rl.config.WritePerSecond
		}
		b = &bucket{tokens: burst, burst: burst, refillRate: rate, lastUpdate: rl.now()}
		rl.buckets[key] = b
	}

	now := rl.now()
	if now.Before(b.blockedUntil) {
		return false, 0, int(b.blockedUntil.Sub(now).Seconds()) + 1
	}

	b.tokens += now.Sub(b.lastUpdate).Seconds() * b.refillRate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastUpdate = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}

	b.blockedUntil = now.Add(rl.config.BlockDuration)
	return false, 0, int(rl.config.BlockDuration.Seconds())
}

// trafficClass buckets a request as a read or a keeper write. The write
// paths are the price feed and the standalone crank endpoint.
func trafficClass(r *http.Request) string {
	if r.Method != http.MethodPost {
		return "read"
	}
	if strings.HasPrefix(r.URL.Path, "/v1/prices") || strings.HasPrefix(r.URL.Path, "/v1/crank") {
		return "write"
	}
	return "read"
}

// RateLimitMiddleware enforces the per-IP limits on every request.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := trafficClass(r)
			allowed, remaining, retryAfter := rl.allow(class, clientIP(r))

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				if retryAfter > 0 {
					w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				}
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":       "rate_limit_exceeded",
					"message":     fmt.Sprintf("Too many %s requests, please slow down", class),
					"retry_after": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		return ip[:i]
	}
	return ip
}
