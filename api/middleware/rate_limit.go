package middleware

import (
	"net/http"
	"sync"
	"time"

	"authgate/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// KeyFunc names the bucket a request draws from.
type KeyFunc func(c echo.Context) string

// RateLimiter is a token bucket per key, the client IP unless KeyBy says
// otherwise. A limiter built with a non-positive rate lets every request through.
type RateLimiter struct {
	buckets  map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	key      KeyFunc
}

func NewRateLimiter(r rate.Limit, burst int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
		key:      ClientIPKey,
	}
}

// KeyBy replaces the bucket key. It returns l for chaining at construction.
func (l *RateLimiter) KeyBy(fn KeyFunc) *RateLimiter {
	if fn != nil {
		l.key = fn
	}
	return l
}

func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil || l.rate <= 0 {
				return next(c)
			}
			if !l.bucket(l.key(c)).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests.")
			}
			return next(c)
		}
	}
}

func ClientIPKey(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// PendingUserKey buckets code guesses by the user awaiting a second factor,
// so changing address does not buy more attempts. Requests without a pending
// login fall back to the client IP.
func PendingUserKey(c echo.Context) string {
	if sess, ok := SessionFromContext(c); ok {
		if id, ok := sess.Get(entity.SessionPendingUserIDKey); ok && id != "" {
			return "pending:" + id
		}
	}
	return ClientIPKey(c)
}

func (l *RateLimiter) bucket(key string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	if limiter, ok := l.buckets[key]; ok {
		l.lastSeen[key] = now
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.buckets[key] = limiter
	l.lastSeen[key] = now
	l.evict(now)
	return limiter
}

func (l *RateLimiter) evict(now time.Time) {
	if l.ttl == 0 {
		return
	}
	cutoff := now.Add(-l.ttl)
	for key, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.lastSeen, key)
			delete(l.buckets, key)
		}
	}
}
