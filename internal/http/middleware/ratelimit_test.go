package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitAllowsWithinBurst(t *testing.T) {
	handler := RateLimit(1, 3)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/conversation/turn", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/conversation/turn", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTurnLimiterEvictsIdleCallers(t *testing.T) {
	l := newTurnLimiter(1, 1)
	clock := time.Now()
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	require.True(t, l.allow("203.0.113.7"))
	require.True(t, l.allow("203.0.113.8"))
	require.Len(t, l.callers, 2)

	// Caller .7 goes quiet; .8 keeps calling past the sweep interval.
	clock = clock.Add(idleAfter / 2)
	l.allow("203.0.113.8")
	clock = clock.Add(idleAfter)
	l.allow("203.0.113.9")

	assert.NotContains(t, l.callers, "203.0.113.7", "idle bucket swept")
	assert.Contains(t, l.callers, "203.0.113.9")
}

func TestRateLimitIsPerCaller(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/conversation/turn", nil)
	first.Header.Set("X-Real-Ip", "203.0.113.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same caller is out of tokens.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different caller still gets through.
	other := httptest.NewRequest(http.MethodPost, "/api/v1/conversation/turn", nil)
	other.Header.Set("X-Real-Ip", "203.0.113.8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
