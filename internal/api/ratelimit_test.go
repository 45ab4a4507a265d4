package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RPS: 0.001, Burst: 1})

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RPS: 0.001, Burst: 1})
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	now = now.Add(idleTTL + 2*time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"), "idle bucket should have been dropped")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"remote addr", true, "", "", "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded leftmost", true, "203.0.113.5, 10.0.0.1", "", "192.0.2.1:1234", "203.0.113.5"},
		{"invalid forwarded", true, "not-an-ip", "", "192.0.2.1:1234", "192.0.2.1"},
		{"real ip", true, "", "198.51.100.9", "192.0.2.1:1234", "198.51.100.9"},
		{"no port", true, "", "", "192.0.2.1", "192.0.2.1"},
		{"forwarded ignored without proxy", false, "203.0.113.5", "", "192.0.2.1:1234", "192.0.2.1"},
		{"real ip ignored without proxy", false, "", "198.51.100.9", "192.0.2.1:1234", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trustProxy))
		})
	}
}

func TestRateLimiter_SpoofedForwardedForSharesBucket(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RPS: 0.001, Burst: 1})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 2)
	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest("GET", "/api/tables", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
