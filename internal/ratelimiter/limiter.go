package ratelimiter

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key (client IP for the admin API).
type Limiter struct {
	mu    sync.Mutex
	store map[string]*rate.Limiter
	limit rate.Limit
	burst int
	now   func() time.Time
}

// New builds a limiter allowing rps requests per second with the given
// burst. rps <= 0 disables limiting.
func New(rps, burst int) *Limiter {
	return &Limiter{
		store: map[string]*rate.Limiter{},
		limit: rate.Limit(rps),
		burst: max(1, burst),
		now:   time.Now,
	}
}

func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	b, ok := l.store[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.store[key] = b
	}
	l.mu.Unlock()
	return b.AllowN(l.now(), 1)
}

func ClientIP(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
