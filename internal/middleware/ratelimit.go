// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients caps the number of clients a limiter set remembers.
const maxTrackedClients = 10000

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client address.
type clientLimiters struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	return &clientLimiters{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// allow takes a token from the client's bucket.
func (cl *clientLimiters) allow(client string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	b, ok := cl.buckets[client]
	if !ok {
		if len(cl.buckets) >= maxTrackedClients {
			cl.buckets = make(map[string]*clientBucket)
		}
		b = &clientBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// prune forgets clients idle for longer than idle and returns how many
// were dropped. A forgotten client starts again with a full bucket.
func (cl *clientLimiters) prune(idle time.Duration) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := cl.now().Add(-idle)
	dropped := 0
	for client, b := range cl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(cl.buckets, client)
			dropped++
		}
	}
	return dropped
}

func (cl *clientLimiters) size() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.buckets)
}

// retryAfter is the whole number of seconds until one token refills.
func (cl *clientLimiters) retryAfter() int {
	if cl.limit <= 0 {
		return 1
	}
	return max(int(math.Ceil(1/float64(cl.limit))), 1)
}

// EditRateLimit limits inline edit requests per client IP. Rejections use
// the edit endpoints' JSON envelope so the editor script can revert the field.
func EditRateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiters := newClientLimiters(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(GetClientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(limiters.retryAfter()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":"too many edits, slow down"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP returns the client address. chi's RealIP middleware has
// usually rewritten RemoteAddr already; the forwarding headers cover
// handlers mounted without it.
func GetClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
