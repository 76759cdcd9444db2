package ratelimit

import (
	"sync"
	"time"

	xhttp "FinScan/pkg/http"

	"github.com/labstack/echo/v4"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-key token bucket. Every key starts full at capacity and
// refills at refillPerSec tokens per second. Buckets that have refilled to
// capacity are indistinguishable from new ones and are dropped by a periodic
// sweep, so the map only holds recently active keys.
type Limiter struct {
	mu           sync.Mutex
	m            map[string]*bucket
	capacity     float64
	refillPerSec float64
	sweepEvery   time.Duration
	lastSweep    time.Time
	now          func() time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		m:            make(map[string]*bucket),
		capacity:     capacity,
		refillPerSec: refillPerSec,
		sweepEvery:   fillTime(capacity, refillPerSec),
		now:          time.Now,
	}
}

func fillTime(capacity, refillPerSec float64) time.Duration {
	d := time.Duration(capacity / refillPerSec * float64(time.Second))
	if d < time.Second || refillPerSec <= 0 {
		return time.Second
	}
	return d
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
	}

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillPerSec
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.m {
		if b.tokens+now.Sub(b.last).Seconds()*l.refillPerSec >= l.capacity {
			delete(l.m, key)
		}
	}
	l.lastSweep = now
}

// Middleware limits requests per client IP.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
