// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/HSouheill/herbreserve_backend/models"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

// RateLimiter keeps one token bucket per client IP and route.
type RateLimiter struct {
	limiters       map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             sync.Mutex
	defaultLimit   endpointLimit
	blockDuration  time.Duration
	endpointLimits map[string]endpointLimit
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters:      make(map[string]*rate.Limiter),
		blockedIPs:    make(map[string]time.Time),
		defaultLimit:  endpointLimit{limit: rate.Every(100 * time.Millisecond), burst: 20},
		blockDuration: 5 * time.Minute,
		endpointLimits: map[string]endpointLimit{
			// Opting in is once a day; a handful of retries is plenty.
			"/api/user/activate-daily-profit": {limit: rate.Every(2 * time.Second), burst: 5},
			"/api/admin/cron/daily-profit/run": {limit: rate.Every(10 * time.Second), burst: 2},
		},
	}
}

// Limit overrides the rate for one route path.
func (r *RateLimiter) Limit(path string, every time.Duration, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpointLimits[path] = endpointLimit{limit: rate.Every(every), burst: burst}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			path := c.Path()
			now := time.Now()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if now.Before(blockUntil) {
					r.mu.Unlock()
					return tooManyRequests(c, blockUntil)
				}
				delete(r.blockedIPs, ip)
			}
			limiter := r.limiterFor(ip, path)
			allowed := limiter.Allow()
			if !allowed {
				r.blockedIPs[ip] = now.Add(r.blockDuration)
			}
			r.mu.Unlock()

			if !allowed {
				return tooManyRequests(c, now.Add(r.blockDuration))
			}
			return next(c)
		}
	}
}

// limiterFor must be called with r.mu held.
func (r *RateLimiter) limiterFor(ip, path string) *rate.Limiter {
	cfg, specific := r.endpointLimits[path]
	key := ip
	if specific {
		key = ip + " " + path
	} else {
		cfg = r.defaultLimit
	}
	limiter, ok := r.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(cfg.limit, cfg.burst)
		r.limiters[key] = limiter
	}
	return limiter
}

// Cleanup drops expired blocks and their limiters; main runs it on a ticker.
func (r *RateLimiter) Cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ip, blockUntil := range r.blockedIPs {
		if now.After(blockUntil) {
			delete(r.blockedIPs, ip)
			for key := range r.limiters {
				if key == ip || strings.HasPrefix(key, ip+" ") {
					delete(r.limiters, key)
				}
			}
		}
	}
}

func tooManyRequests(c echo.Context, retryAfter time.Time) error {
	return c.JSON(http.StatusTooManyRequests, models.Response{
		Status:  http.StatusTooManyRequests,
		Message: "Too many requests",
		Data:    map[string]string{"retryAfter": retryAfter.Format(time.RFC3339)},
	})
}
