package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/leadflow/internal/http/response"
	"github.com/diagnosis/leadflow/pkg/logger"
	"golang.org/x/time/rate"
)

// Limiter decides whether another request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// WindowCounter counts hits per key in fixed windows. cache.WindowCounter
// implements it on Redis.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisLimiter counts requests in fixed windows shared by every replica.
type RedisLimiter struct {
	counter  WindowCounter
	requests int
	window   time.Duration
}

func NewRedisLimiter(counter WindowCounter, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{counter: counter, requests: requests, window: window}
}

// Allow lets the request through when the counter fails.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	n, err := l.counter.Incr(ctx, hashKey(key), l.window)
	if err != nil {
		return true, err
	}
	return n <= int64(l.requests), nil
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps a token bucket per key in process memory. Buckets
// refill at requests per window with a burst of requests. A bucket idle for
// a whole window is full again, so it is dropped on the next sweep.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	if requests < 1 {
		requests = 1
	}
	return &MemoryLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Every(window / time.Duration(requests)),
		burst:     requests,
		idle:      window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Len reports how many buckets are held.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit answers 429 once the client IP exceeds the limiter's budget.
// Forwarding headers are only read when trustProxy is set; otherwise the key
// is the connection's remote address. Limiter errors let the request through.
func RateLimit(limiter Limiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r, trustProxy)
			ok, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "Rate limiter unavailable", "error", err)
			}
			if !ok {
				response.RateLimit(w, "Too many requests. Try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hashKey(key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

// getClientIP extracts the client IP. X-Forwarded-For and X-Real-IP are
// client controlled unless a proxy in front overwrites them.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
