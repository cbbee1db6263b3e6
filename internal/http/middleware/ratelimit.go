package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	// evictEvery bounds how often the caller map is swept.
	evictEvery = 5 * time.Minute
	// idleAfter is how long a quiet caller's bucket survives.
	idleAfter = 10 * time.Minute
)

// callerBucket is a token bucket for one caller IP. Tokens refill
// continuously at the configured rate up to the burst cap.
type callerBucket struct {
	tokens     float64
	lastRefill time.Time
}

// turnLimiter throttles conversation turns per caller IP. Every turn costs a
// language-model call, so bursts are capped at the edge rather than queued.
//
// Idle buckets are swept inline from allow, so the limiter owns no goroutine
// and needs no shutdown.
type turnLimiter struct {
	mu        sync.Mutex
	callers   map[string]*callerBucket
	rate      float64
	burst     float64
	lastSweep time.Time
	now       func() time.Time // injected in tests
}

func newTurnLimiter(rate float64, burst int) *turnLimiter {
	return &turnLimiter{
		callers:   make(map[string]*callerBucket),
		rate:      rate,
		burst:     float64(burst),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *turnLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= evictEvery {
		l.evictIdleLocked(now)
	}

	b, ok := l.callers[ip]
	if !ok {
		l.callers[ip] = &callerBucket{tokens: l.burst - 1, lastRefill: now}
		return true
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdleLocked drops buckets for callers that have gone quiet, which is
// most of them once a phone call ends. Caller holds l.mu.
func (l *turnLimiter) evictIdleLocked(now time.Time) {
	cutoff := now.Add(-idleAfter)
	for ip, b := range l.callers {
		if b.lastRefill.Before(cutoff) {
			delete(l.callers, ip)
		}
	}
	l.lastSweep = now
}

// RateLimit rejects requests beyond rate requests/sec (with the given burst)
// per caller IP with 429 Too Many Requests.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := newTurnLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// chi's RealIP middleware rewrites this header from X-Forwarded-For.
			if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
				ip = realIP
			}
			if !limiter.allow(ip) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error": "rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
