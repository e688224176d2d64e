package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tikgrab/tikgrab/internal/httputil"
)

const (
	idleTTL       = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is a per-client token bucket keyed by client IP.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
}

type rejection struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewLimiter allows burst requests at once and refills at requestsPerSecond.
// Idle clients are forgotten until ctx is done.
func NewLimiter(ctx context.Context, requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    requestsPerSecond,
		burst:   float64(burst),
	}
	go l.forgetIdle(ctx)
	return l
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate)
	b.lastSeen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// retryAfter is the number of whole seconds until one token is available.
func (l *Limiter) retryAfter() int {
	if l.rate <= 0 {
		return 60
	}
	return int(math.Ceil(1 / l.rate))
}

func (l *Limiter) forgetIdle(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			for key, b := range l.buckets {
				if time.Since(b.lastSeen) > idleTTL {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(httputil.ClientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			httputil.WriteJSON(w, http.StatusTooManyRequests, rejection{
				Message: "Too many requests. Please wait a moment and try again.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
