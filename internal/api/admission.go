package api

import (
	"strings"
	"sync"
	"sync/atomic"
)

// ConnReject says why a session was refused.
type ConnReject string

const (
	ConnAccepted   ConnReject = ""
	ConnTotalLimit ConnReject = "ws_total_limit"
	ConnIPLimit    ConnReject = "ws_ip_limit"
)

// ConnLimiter caps concurrent sessions in total and per IP.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxTotal int
	maxPerIP int

	// Stats
	rejectedCount uint64 // atomic
}

// NewConnLimiter creates a session limiter
func NewConnLimiter(maxTotal, maxPerIP int) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
	}
}

// Acquire reserves a slot for ip. A non-empty reason means the slot was refused.
func (cl *ConnLimiter) Acquire(ip string) ConnReject {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.total >= cl.maxTotal {
		atomic.AddUint64(&cl.rejectedCount, 1)
		return ConnTotalLimit
	}
	if cl.perIP[ip] >= cl.maxPerIP {
		atomic.AddUint64(&cl.rejectedCount, 1)
		return ConnIPLimit
	}
	cl.perIP[ip]++
	cl.total++
	return ConnAccepted
}

// Release frees a slot taken by Acquire
func (cl *ConnLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n, ok := cl.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(cl.perIP, ip)
	} else {
		cl.perIP[ip] = n - 1
	}
	cl.total--
}

// Count returns the live session count, total and for ip.
func (cl *ConnLimiter) Count(ip string) (total, forIP int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.total, cl.perIP[ip]
}

// GetStats returns session limiter statistics
func (cl *ConnLimiter) GetStats() map[string]uint64 {
	return map[string]uint64{
		"rejected": atomic.LoadUint64(&cl.rejectedCount),
	}
}

// OriginPolicy decides which browser origins may open a session or call the API.
// Localhost on any port is always allowed; everything else must be listed.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from exact origins such as "https://arena.example".
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Allowed checks an Origin header value.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if isLocalOrigin(origin) {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// CORSOrigins returns the patterns handed to the CORS middleware.
func (p *OriginPolicy) CORSOrigins() []string {
	out := []string{"http://localhost:*", "http://127.0.0.1:*"}
	for o := range p.allowed {
		out = append(out, o)
	}
	return out
}

func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}
