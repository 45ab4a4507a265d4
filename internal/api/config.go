package api

import "time"

// Config holds server configuration.
type Config struct {
	Listen          string          // host:port to listen on
	AllowedOrigins  []string        // CORS allowed origins (empty = allow all)
	RateLimit       RateLimitConfig // per-client limits
	ShutdownTimeout time.Duration   // grace period for in-flight requests
	MaxBodyBytes    int64           // request body limit
}

// RateLimitConfig configures per-client request limiting. An RPS of zero
// disables it. Clients are keyed by their connection address unless
// TrustProxy is set, in which case X-Forwarded-For and X-Real-IP win.
type RateLimitConfig struct {
	RPS        float64
	Burst      int
	TrustProxy bool
}

// Defaults used when a Config field is zero.
const (
	DefaultListen          = ":4000"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultBurst           = 20
)

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultBurst
	}
	return c
}
