package admin

import (
	"net"
	"sync"
	"time"
)

// Admin traffic is an operator poking a handful of cache endpoints, so the
// defaults are deliberately tight.
const (
	defaultAdminRPS        = 2
	defaultAdminBurst      = 5
	defaultMaxAuthFailures = 10
	defaultAuthBlock       = 15 * time.Minute
)

type RateLimitConfig struct {
	RPS           int
	Burst         int
	MaxFailures   int
	BlockDuration time.Duration
}

// RateLimiter throttles admin calls per client IP and locks an IP out after
// repeated authentication failures. Lockouts expire on their own; a
// successful authentication clears the failure count early.
type RateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*clientState
	rate        float64
	burst       float64
	maxFailures int
	blockFor    time.Duration
	now         func() time.Time
}

type clientState struct {
	tokens       float64
	lastRefill   time.Time
	failures     int
	blockedUntil time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultAdminRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultAdminBurst
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxAuthFailures
	}
	blockFor := cfg.BlockDuration
	if blockFor <= 0 {
		blockFor = defaultAuthBlock
	}

	return &RateLimiter{
		clients:     make(map[string]*clientState),
		rate:        float64(rps),
		burst:       float64(burst),
		maxFailures: maxFailures,
		blockFor:    blockFor,
		now:         time.Now,
	}
}

func (l *RateLimiter) Allow(addr string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.clientLocked(addr, now)
	if now.Before(state.blockedUntil) {
		return false
	}

	elapsed := now.Sub(state.lastRefill).Seconds()
	state.tokens += elapsed * l.rate
	if state.tokens > l.burst {
		state.tokens = l.burst
	}
	state.lastRefill = now

	if state.tokens < 1 {
		return false
	}
	state.tokens--
	return true
}

func (l *RateLimiter) RecordFailure(addr string) {
	if l == nil {
		return
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.clientLocked(addr, now)
	if now.Before(state.blockedUntil) {
		return
	}
	state.failures++
	if state.failures >= l.maxFailures {
		state.blockedUntil = now.Add(l.blockFor)
		state.failures = 0
	}
}

func (l *RateLimiter) ResetFailures(addr string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if state, ok := l.clients[clientIP(addr)]; ok {
		state.failures = 0
	}
}

func (l *RateLimiter) clientLocked(addr string, now time.Time) *clientState {
	ip := clientIP(addr)
	state, ok := l.clients[ip]
	if !ok {
		state = &clientState{tokens: l.burst, lastRefill: now}
		l.clients[ip] = state
	}
	return state
}

func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
