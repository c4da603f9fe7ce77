package gateway

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter map so a burst of distinct IPs can't
// grow it without limit; the least-recently-seen entries are evicted.
const maxTrackedClients = 4096

// RateLimiter throttles gateway HTTP endpoints per client key (bearer token
// when present, else remote IP), backed by golang.org/x/time/rate token
// buckets — one per key, refilled continuously at rpm/60 per second with a
// burst allowance.
type RateLimiter struct {
	rpm   int
	burst int

	mu      sync.Mutex
	buckets map[string]*trackedLimiter
}

type trackedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter allowing rpm requests per minute per key,
// with burst extra requests permitted immediately. rpm <= 0 disables
// limiting entirely.
func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rpm:     rpm,
		burst:   burst,
		buckets: make(map[string]*trackedLimiter),
	}
}

// Enabled reports whether rate limiting is active.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.rpm > 0
}

// Allow reports whether a request under key may proceed, consuming one
// token if so.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.Enabled() {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	tl, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxTrackedClients {
			rl.evictOldestLocked()
		}
		tl = &trackedLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.rpm)/60.0), rl.burst),
		}
		rl.buckets[key] = tl
	}
	tl.lastSeen = time.Now()
	return tl.limiter.Allow()
}

// evictOldestLocked drops the least-recently-seen bucket. Caller must hold
// rl.mu.
func (rl *RateLimiter) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	for k, tl := range rl.buckets {
		if oldestKey == "" || tl.lastSeen.Before(oldestTime) {
			oldestKey, oldestTime = k, tl.lastSeen
		}
	}
	if oldestKey != "" {
		delete(rl.buckets, oldestKey)
	}
}

// clientKey derives the rate-limit key for a request: the bearer token if
// present (keeps each authenticated caller on their own bucket even behind
// a shared NAT), else the remote IP.
func clientKey(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return "token:" + token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimPrefix(auth, "Bearer "); token != "" {
			return "token:" + token
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
