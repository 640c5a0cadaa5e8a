package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Togather-Foundation/events-api/internal/api/problem"
	"github.com/Togather-Foundation/events-api/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierRead  RateLimitTier = "read"
	TierWrite RateLimitTier = "write"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 15 * time.Minute
)

// TierForMethod maps safe methods to the read budget and everything else
// to the write budget.
func TierForMethod(method string) RateLimitTier {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return TierRead
	default:
		return TierWrite
	}
}

// RateLimit applies a per-client token bucket for each tier. Health probes
// are never limited. The cleanup goroutine stops when ctx is done.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	store := newLimiterStore(cfg)
	go store.cleanupLoop(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			tier := TierForMethod(r.Method)
			limiter := store.limiter(tier, clientKey(r, cfg.TrustedProxyCIDRs))
			if limiter == nil || limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := store.retryAfter(tier)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			problem.WriteProblem(w, problem.ProblemDetails{
				Type:     problem.TypeRateLimited,
				Title:    "Too many requests",
				Status:   http.StatusTooManyRequests,
				Detail:   "rate limit exceeded for " + string(tier) + " requests",
				Instance: r.URL.Path,
			})
		})
	}
}

type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierRead:  cfg.ReadPerMinute,
			TierWrite: cfg.WritePerMinute,
		},
	}
}

// limiter returns nil when the tier is unlimited.
func (s *limiterStore) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := s.perMinute[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.limiters[lookup]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	interval := time.Minute / time.Duration(limit)
	limiter := rate.NewLimiter(rate.Every(interval), limit)
	s.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// retryAfter is the refill time of one token, in whole seconds.
func (s *limiterStore) retryAfter(tier RateLimitTier) int {
	limit := s.perMinute[tier]
	if limit <= 0 {
		return 0
	}
	seconds := 60 / limit
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (s *limiterStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// cleanup drops limiters not used within limiterTTL.
func (s *limiterStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterTTL {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// clientKey identifies the caller. Forwarding headers are only trusted when
// the direct peer is inside one of trustedProxyCIDRs.
func clientKey(r *http.Request, trustedProxyCIDRs []string) string {
	if r == nil {
		return ""
	}

	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trustedProxyCIDRs) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	if len(trustedCIDRs) == 0 {
		return false
	}
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}
	for _, cidrStr := range trustedCIDRs {
		_, cidr, err := net.ParseCIDR(cidrStr)
		if err != nil {
			continue
		}
		if cidr.Contains(parsedIP) {
			return true
		}
	}
	return false
}
