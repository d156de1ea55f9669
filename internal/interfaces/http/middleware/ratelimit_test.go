package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketLimiter_BurstThenRefill(t *testing.T) {
	l := NewTokenBucketLimiter(2, 2, 0)
	defer l.Stop()
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ok1, _ := l.Allow("a")
	ok2, info := l.Allow("a")
	ok3, _ := l.Allow("a")

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, 0, info.Remaining)
	assert.False(t, ok3)

	// other keys have their own bucket
	okOther, _ := l.Allow("b")
	assert.True(t, okOther)

	now = now.Add(500 * time.Millisecond)
	ok4, _ := l.Allow("a")
	assert.True(t, ok4)
}

func TestTokenBucketLimiter_Cleanup(t *testing.T) {
	l := NewTokenBucketLimiter(10, 5, 0)
	l.cleanupInterval = time.Minute
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	l.Allow("idle")
	assert.Equal(t, 1, l.BucketCount())

	now = now.Add(2 * time.Minute)
	l.cleanup()

	assert.Equal(t, 0, l.BucketCount())
	l.Stop()
	l.Stop()
}

func TestRateLimit_Middleware(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1, 0)
	defer l.Stop()
	cfg := DefaultRateLimitConfig()
	h := RateLimit(l, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := func(path, addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusOK, req("/npv", "10.0.0.1:5000").Code)
	limited := req("/npv", "10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "COMMON_007")

	assert.Equal(t, http.StatusOK, req("/npv", "10.0.0.2:5000").Code)
	assert.Equal(t, http.StatusOK, req("/healthz", "10.0.0.1:5002").Code)
}

func TestClientIPKeyFunc(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIPKeyFunc(r))

	r.RemoteAddr = "192.0.2.1"
	assert.Equal(t, "192.0.2.1", ClientIPKeyFunc(r))
	assert.Equal(t, "ip:192.0.2.1", APIKeyKeyFunc(r))
}
