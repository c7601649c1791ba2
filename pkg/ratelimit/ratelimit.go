package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/logx"
	"golang.org/x/time/rate"
)

var ErrRegistry = errx.NewRegistry("RATELIMIT")

var CodeExceeded = ErrRegistry.Register("EXCEEDED", errx.TypeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded")

// ErrExceeded reports an admission rejection with a retry hint in seconds.
func ErrExceeded(retryAfter time.Duration) *errx.Error {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return ErrRegistry.New(CodeExceeded).WithDetail("retry_after_seconds", seconds)
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter admits requests per client key with a greedy-refill token
// bucket: unused capacity accumulates up to one minute's worth of
// requests, so a client bursting after idling is not penalized.
type Limiter struct {
	mu                sync.Mutex
	buckets           map[string]*clientBucket
	requestsPerMinute int
}

func NewLimiter(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 100
	}
	return &Limiter{
		buckets:           make(map[string]*clientBucket),
		requestsPerMinute: requestsPerMinute,
	}
}

func (l *Limiter) bucket(key string) *clientBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(l.requestsPerMinute)/60.0), l.requestsPerMinute),
		}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b
}

// Allow admits or rejects one request for the client key. On rejection it
// returns the delay until the next token becomes available.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	b := l.bucket(key)

	reservation := b.limiter.Reserve()
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

// Cleanup evicts buckets idle longer than maxIdle and returns the number
// removed.
func (l *Limiter) Cleanup(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// StartCleanup evicts stale buckets every interval until ctx is done.
func (l *Limiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Cleanup(maxIdle); removed > 0 {
					logx.WithField("evicted", removed).Debug("Rate limiter buckets evicted")
				}
			}
		}
	}()
}

// ClientKey resolves the client identity for admission. X-Forwarded-For is
// honored only when the direct peer is a configured trusted proxy;
// otherwise the header is attacker-controlled and the peer address wins.
func ClientKey(remoteAddr, forwardedFor string, trustedProxies []string) string {
	if forwardedFor == "" || !isTrustedProxy(remoteAddr, trustedProxies) {
		return remoteAddr
	}

	// First hop in the list is the original client.
	first := forwardedFor
	if idx := strings.IndexByte(forwardedFor, ','); idx >= 0 {
		first = forwardedFor[:idx]
	}
	first = strings.TrimSpace(first)
	if first == "" {
		return remoteAddr
	}
	return first
}

func isTrustedProxy(remoteAddr string, trustedProxies []string) bool {
	for _, proxy := range trustedProxies {
		if proxy != "" && proxy == remoteAddr {
			return true
		}
	}
	return false
}
