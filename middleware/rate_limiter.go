// middleware/rate_limiter.go
package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type RateLimiter struct {
	ips            map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             *sync.RWMutex
	defaultLimit   rate.Limit
	defaultBurst   int
	blockDuration  time.Duration
	endpointLimits map[string]struct {
		limit rate.Limit
		burst int
	}
}

func NewRateLimiter() *RateLimiter {
	limiter := &RateLimiter{
		ips:           make(map[string]*rate.Limiter),
		blockedIPs:    make(map[string]time.Time),
		mu:            &sync.RWMutex{},
		defaultLimit:  rate.Every(100 * time.Millisecond), // 10 requests per second
		defaultBurst:  20,                                 // Allow bursts of 20 requests
		blockDuration: 5 * time.Minute,
		endpointLimits: make(map[string]struct {
			limit rate.Limit
			burst int
		}),
	}

	// Cancel attempts are user actions, keep them modest
	limiter.endpointLimits["/api/bookings/:id/cancel"] = struct {
		limit rate.Limit
		burst int
	}{
		limit: rate.Every(time.Second),
		burst: 5,
	}

	// Gateways retry aggressively; webhooks get lenient limits so a
	// redelivery burst is never mistaken for abuse
	for _, path := range []string{"/api/payments/mercadopago/webhook", "/api/payments/mobbex/webhook"} {
		limiter.endpointLimits[path] = struct {
			limit rate.Limit
			burst int
		}{
			limit: rate.Every(20 * time.Millisecond), // 50 requests per second
			burst: 100,
		}
	}

	return limiter
}

func (rl *RateLimiter) getLimiter(ip, path string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := ip
	limit := rl.defaultLimit
	burst := rl.defaultBurst
	if endpointLimit, ok := rl.endpointLimits[path]; ok {
		key = ip + "|" + path
		limit = endpointLimit.limit
		burst = endpointLimit.burst
	}

	limiter, exists := rl.ips[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		rl.ips[key] = limiter
	}
	return limiter
}

// RateLimit returns the per-IP rate limiting middleware.
func (rl *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			path := c.Path()

			rl.mu.RLock()
			blockedUntil, blocked := rl.blockedIPs[ip]
			rl.mu.RUnlock()

			if blocked {
				if time.Now().Before(blockedUntil) {
					return echo.NewHTTPError(429, "Too many requests. Try again later.")
				}
				rl.mu.Lock()
				delete(rl.blockedIPs, ip)
				rl.mu.Unlock()
			}

			limiter := rl.getLimiter(ip, path)
			if !limiter.Allow() {
				// Abusive clients get blocked for a while, except on webhook
				// paths where the "client" is the payment gateway
				if !strings.Contains(path, "/webhook") {
					rl.mu.Lock()
					rl.blockedIPs[ip] = time.Now().Add(rl.blockDuration)
					rl.mu.Unlock()
				}
				return echo.NewHTTPError(429, "Too many requests")
			}

			return next(c)
		}
	}
}
