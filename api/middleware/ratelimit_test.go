package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestLimiter returns a limiter with a controllable clock and no
// background cleanup goroutine.
func newTestLimiter(config *RateLimitConfig) (*RateLimiter, *time.Time) {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	now := time.Unix(1_700_000_000, 0)
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     func() time.Time { return now },
	}
	return rl, &now
}

func TestAllowExhaustsBurstThenBlocks(t *testing.T) {
	rl, now := newTestLimiter(&RateLimitConfig{
		ReadPerSecond: 1, ReadBurst: 3,
		BlockDuration: time.Minute,
	})

	for i := 0; i < 3; i++ {
		if ok, _, _ := rl.allow("read", "1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	ok, _, retry := rl.allow("read", "1.2.3.4")
	if ok {
		t.Fatal("fourth request should be rejected")
	}
	if retry != 60 {
		t.Errorf("expected retry after 60s, got %d", retry)
	}

	// Still blocked while the penalty runs, even after tokens refill.
	*now = now.Add(30 * time.Second)
	if ok, _, _ := rl.allow("read", "1.2.3.4"); ok {
		t.Error("request during block should be rejected")
	}

	*now = now.Add(31 * time.Second)
	if ok, _, _ := rl.allow("read", "1.2.3.4"); !ok {
		t.Error("request after block expiry should be allowed")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	rl, now := newTestLimiter(&RateLimitConfig{
		ReadPerSecond: 2, ReadBurst: 2,
		BlockDuration: time.Minute,
	})

	rl.allow("read", "1.2.3.4")
	rl.allow("read", "1.2.3.4")
	*now = now.Add(time.Second)
	if ok, remaining, _ := rl.allow("read", "1.2.3.4"); !ok || remaining != 1 {
		t.Errorf("expected allowed with 1 remaining after refill, got %v %d", ok, remaining)
	}
}

func TestWriteClassIsIsolatedAndStricter(t *testing.T) {
	rl, _ := newTestLimiter(&RateLimitConfig{
		ReadPerSecond: 100, ReadBurst: 100,
		WritePerSecond: 1, WriteBurst: 1,
		BlockDuration: time.Minute,
	})

	if ok, _, _ := rl.allow("write", "1.2.3.4"); !ok {
		t.Fatal("first write should be allowed")
	}
	if ok, _, _ := rl.allow("write", "1.2.3.4"); ok {
		t.Fatal("second write should be rejected")
	}
	// Draining the write bucket must not touch reads from the same IP.
	if ok, _, _ := rl.allow("read", "1.2.3.4"); !ok {
		t.Error("read should still be allowed")
	}
}

func TestTrafficClass(t *testing.T) {
	cases := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/v1/status", "read"},
		{http.MethodGet, "/v1/prices", "read"},
		{http.MethodPost, "/v1/prices", "write"},
		{http.MethodPost, "/v1/crank", "write"},
		{http.MethodPost, "/v1/other", "read"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, nil)
		if got := trafficClass(r); got != tc.want {
			t.Errorf("%s %s: expected %s, got %s", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	rl, _ := newTestLimiter(&RateLimitConfig{
		ReadPerSecond: 1, ReadBurst: 1,
		BlockDuration: time.Minute,
	})
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on rejection")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	r.RemoteAddr = "10.0.0.1:443"
	if ip := clientIP(r); ip != "10.0.0.1" {
		t.Errorf("expected remote addr ip, got %s", ip)
	}
	r.Header.Set("X-Real-IP", "2.2.2.2")
	if ip := clientIP(r); ip != "2.2.2.2" {
		t.Errorf("expected X-Real-IP, got %s", ip)
	}
	r.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")
	if ip := clientIP(r); ip != "3.3.3.3" {
		t.Errorf("expected first forwarded hop, got %s", ip)
	}
}
