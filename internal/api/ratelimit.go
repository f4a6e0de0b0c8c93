package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"arena-combat/internal/config"
	"arena-combat/internal/world"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures a keyed token bucket limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Tokens refilled per second per key
	Burst             int           // Maximum burst size
	CleanupInterval   time.Duration // How often to clean up stale limiters
}

// DefaultRateLimitConfig returns production-safe defaults for HTTP clients
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,              // 10 requests per second per IP
	Burst:             20,              // Allow burst of 20
	CleanupInterval:   5 * time.Minute, // Clean up every 5 minutes
}

// RateLimitFromConfig builds HTTP limiter settings from the server configuration.
func RateLimitFromConfig(cfg config.ServerConfig) RateLimitConfig {
	out := DefaultRateLimitConfig
	if cfg.RequestsPerSec > 0 {
		out.RequestsPerSecond = cfg.RequestsPerSec
	}
	if cfg.RequestBurst > 0 {
		out.Burst = cfg.RequestBurst
	}
	return out
}

// CommandRateLimitFromConfig builds the per-pawn combat command budget.
func CommandRateLimitFromConfig(cfg config.CombatConfig) RateLimitConfig {
	out := RateLimitConfig{
		RequestsPerSecond: cfg.SubmitsPerSec,
		Burst:             cfg.SubmitBurst,
		CleanupInterval:   time.Minute,
	}
	if out.RequestsPerSecond <= 0 {
		out.RequestsPerSecond = config.DefaultCombat().SubmitsPerSec
	}
	if out.Burst <= 0 {
		out.Burst = config.DefaultCombat().SubmitBurst
	}
	return out
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// KeyedLimiter hands out one token bucket per key. Keys unused for two cleanup
// intervals are forgotten once the cleanup loop runs.
type KeyedLimiter[K comparable] struct {
	limiters  sync.Map // map[K]*limiterEntry
	config    RateLimitConfig
	stopChan  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	rejectedCount atomic.Uint64
	allowedCount  atomic.Uint64
}

// NewKeyedLimiter creates a limiter. No goroutine runs until StartCleanup.
func NewKeyedLimiter[K comparable](cfg RateLimitConfig) *KeyedLimiter[K] {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	return &KeyedLimiter[K]{
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// StartCleanup starts the stale-key sweeper. Later calls are no-ops.
func (kl *KeyedLimiter[K]) StartCleanup() {
	kl.startOnce.Do(func() { go kl.cleanupLoop() })
}

// Stop stops the cleanup goroutine
func (kl *KeyedLimiter[K]) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopChan) })
}

func (kl *KeyedLimiter[K]) entry(key K) *limiterEntry {
	now := time.Now().UnixNano()
	if v, ok := kl.limiters.Load(key); ok {
		e := v.(*limiterEntry)
		e.lastSeen.Store(now)
		return e
	}

	e := &limiterEntry{
		limiter: rate.NewLimiter(rate.Limit(kl.config.RequestsPerSecond), kl.config.Burst),
	}
	e.lastSeen.Store(now)
	actual, _ := kl.limiters.LoadOrStore(key, e)
	return actual.(*limiterEntry)
}

func (kl *KeyedLimiter[K]) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopChan:
			return
		case now := <-ticker.C:
			kl.sweep(now.Add(-kl.config.CleanupInterval * 2))
		}
	}
}

// sweep drops keys not seen since cutoff.
func (kl *KeyedLimiter[K]) sweep(cutoff time.Time) int {
	n := 0
	kl.limiters.Range(func(key, value any) bool {
		if value.(*limiterEntry).lastSeen.Load() < cutoff.UnixNano() {
			kl.limiters.Delete(key)
			n++
		}
		return true
	})
	return n
}

// Allow spends one token from key's bucket.
func (kl *KeyedLimiter[K]) Allow(key K) bool {
	if kl.entry(key).limiter.Allow() {
		kl.allowedCount.Add(1)
		return true
	}
	kl.rejectedCount.Add(1)
	return false
}

// Forget drops key's bucket, e.g. when its session ends.
func (kl *KeyedLimiter[K]) Forget(key K) {
	kl.limiters.Delete(key)
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter[K]) Len() int {
	n := 0
	kl.limiters.Range(func(_, _ any) bool { n++; return true })
	return n
}

// GetStats returns limiter statistics
func (kl *KeyedLimiter[K]) GetStats() map[string]uint64 {
	return map[string]uint64{
		"allowed":  kl.allowedCount.Load(),
		"rejected": kl.rejectedCount.Load(),
		"keys":     uint64(kl.Len()),
	}
}

// IPRateLimiter limits HTTP requests per client IP.
type IPRateLimiter struct {
	*KeyedLimiter[string]
}

// NewIPRateLimiter creates the HTTP limiter and starts its cleanup loop.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{NewKeyedLimiter[string](cfg)}
	rl.StartCleanup()
	return rl
}

// Middleware rejects requests over the caller's budget with 429.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CommandLimiter budgets combat commands per pawn, so every frame that can
// start or feed an ability draws from the same bucket.
type CommandLimiter = KeyedLimiter[world.EntityID]

// GetClientIP extracts the client IP from an HTTP request. Forwarding headers
// are honored only when they hold a parseable address, so junk values cannot
// mint fresh limiter keys.
// CAUTION: the headers can be spoofed if not behind a trusted proxy
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := parseIP(first); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
