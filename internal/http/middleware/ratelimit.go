package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// OriginLimiter throttles requests per client address.
type OriginLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	limiters map[string]*originEntry
	lastGC   time.Time
	now      func() time.Time
}

type originEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewOriginLimiter allows perSecond requests with the given burst per
// origin. A non-positive rate disables limiting.
func NewOriginLimiter(perSecond float64, burst int) *OriginLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &OriginLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		limiters: make(map[string]*originEntry),
		now:      time.Now,
	}
}

// Allow reports whether origin may proceed now and, when not, how long it
// should wait.
func (l *OriginLimiter) Allow(origin string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.collect(now)

	e, ok := l.limiters[origin]
	if !ok {
		e = &originEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[origin] = e
	}
	e.lastSeen = now

	res := e.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *OriginLimiter) collect(now time.Time) {
	if now.Sub(l.lastGC) < l.idle {
		return
	}
	l.lastGC = now
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, k)
		}
	}
}

// Middleware rejects over-limit requests with 429 and Retry-After.
func (l *OriginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Allow(ClientAddress(r))
		if !ok {
			secs := int(wait.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientAddress returns the client IP without port. RealIP has already
// applied forwarding headers to RemoteAddr.
func ClientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
