package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/sakif/hypeshelf/internal/auth"
	"github.com/sakif/hypeshelf/internal/metrics"
)

const rateLimitedBody = `{"error":"rate_limited","message":"Rate limit exceeded"}`

// limiterIdleTTL is how long an unused bucket is kept.
const limiterIdleTTL = 10 * time.Minute

// RateLimit enforces a per-caller token bucket in process memory: rps
// tokens per second, at most burst at once.
//
// Callers are keyed by subject when authenticated, otherwise by client IP.
// Mount it after OptionalAuth/RequireAuth so the subject is available.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	return newLimiterSet(rps, burst, limiterIdleTTL, time.Now).middleware()
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one bucket per key and drops buckets idle for longer
// than idle, so key churn cannot grow it without bound.
type limiterSet struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterSet(rps float64, burst int, idle time.Duration, now func() time.Time) *limiterSet {
	return &limiterSet{
		rps:       rate.Limit(rps),
		burst:     burst,
		idle:      idle,
		now:       now,
		entries:   make(map[string]*limiterEntry),
		lastSweep: now(),
	}
}

func (s *limiterSet) allow(key string) bool {
	now := s.now()

	s.mu.Lock()
	if now.Sub(s.lastSweep) >= s.idle {
		s.sweepLocked(now)
	}
	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = e
	}
	e.lastSeen = now
	s.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (s *limiterSet) sweepLocked(now time.Time) {
	for key, e := range s.entries {
		if now.Sub(e.lastSeen) >= s.idle {
			delete(s.entries, key)
		}
	}
	s.lastSweep = now
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *limiterSet) middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.allow(rateKey(r)) {
				metrics.RateLimitRejected.WithLabelValues("memory").Inc()
				rejectRateLimited(w, 1)
				return
			}
			metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// RedisRateLimit is a fixed-window limiter shared by every instance behind
// the same Redis. Each window admits rps*window + burst requests per caller.
// A nil client falls back to RateLimit.
func RedisRateLimit(client *redis.Client, rps float64, burst int, window time.Duration) func(http.Handler) http.Handler {
	if client == nil {
		return RateLimit(rps, burst)
	}

	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowed := int64(rps*float64(windowSeconds)) + int64(burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			bucket := time.Now().Unix() / int64(windowSeconds)
			key := fmt.Sprintf("hypeshelf:rl:%s:%d", rateKey(r), bucket)

			count, err := client.Incr(ctx, key).Result()
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error","message":"rate limit check failed"}`))
				return
			}
			if count == 1 {
				_ = client.Expire(ctx, key, time.Duration(windowSeconds+1)*time.Second).Err()
			}
			if count > allowed {
				metrics.RateLimitRejected.WithLabelValues("redis").Inc()
				rejectRateLimited(w, windowSeconds)
				return
			}
			metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(r *http.Request) string {
	if sub, ok := auth.SubjectFromContext(r.Context()); ok {
		return "sub:" + sub
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func rejectRateLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(rateLimitedBody))
}
