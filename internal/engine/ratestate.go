package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// permanentCooldown is far enough in the future to outlive any job. Used
// when a session's credential dies mid-run.
const permanentCooldown = 100 * 365 * 24 * time.Hour

// RateState tracks the anti-throttle counters of one session. Only one
// driver touches a session's entry at a time; the mutex covers the
// occasional diagnostic reader.
type RateState struct {
	mu                sync.Mutex
	messagesSent      int
	floodCount        int
	consecutiveErrors int
	cooldownUntil     time.Time
}

// RateSnapshot is a point-in-time copy for diagnostics.
type RateSnapshot struct {
	MessagesSent      int
	FloodCount        int
	ConsecutiveErrors int
	CooldownUntil     time.Time
}

// InCooldown reports whether the session is cooling down at now. An
// elapsed cooldown is cleared lazily here, zeroing the sent counter so
// the next burst starts fresh.
func (r *RateState) InCooldown(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cooldownUntil.IsZero() {
		return false
	}
	if now.Before(r.cooldownUntil) {
		return true
	}
	r.cooldownUntil = time.Time{}
	r.messagesSent = 0
	return false
}

// Success records a delivered message. Returns the cooldown deadline if
// the session message limit was reached and a cooldown was armed.
func (r *RateState) Success(now time.Time, limit int, cooldown time.Duration) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messagesSent++
	r.consecutiveErrors = 0
	if r.messagesSent >= limit {
		r.cooldownUntil = now.Add(cooldown)
		r.messagesSent = 0
		return r.cooldownUntil, true
	}
	return time.Time{}, false
}

// Flood records a flood signal of n seconds. When n is small the driver
// waits inline and keeps going; a large n arms the cooldown instead.
// Crossing maxFlood arms the longer freeze regardless of n.
func (r *RateState) Flood(now time.Time, n int, inlineLimit int, maxFlood int, freeze time.Duration) (inline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.floodCount++
	r.consecutiveErrors++
	inline = n <= inlineLimit
	if !inline {
		r.armLocked(now.Add(time.Duration(n) * time.Second))
	}
	if r.floodCount >= maxFlood {
		r.armLocked(now.Add(freeze))
		inline = false
	}
	return inline
}

// Transient records an unclassified error. After maxConsecutive of them
// in a row a defensive cooldown is armed and the streak resets.
func (r *RateState) Transient(now time.Time, maxConsecutive int, cooldown time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveErrors++
	if r.consecutiveErrors >= maxConsecutive {
		r.armLocked(now.Add(cooldown))
		r.consecutiveErrors = 0
	}
}

// Arm forces a cooldown until the given time.
func (r *RateState) Arm(until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armLocked(until)
}

// armLocked never shortens an existing cooldown.
func (r *RateState) armLocked(until time.Time) {
	if until.After(r.cooldownUntil) {
		r.cooldownUntil = until
		r.messagesSent = 0
	}
}

// Snapshot returns a copy of the counters.
func (r *RateState) Snapshot() RateSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RateSnapshot{
		MessagesSent:      r.messagesSent,
		FloodCount:        r.floodCount,
		ConsecutiveErrors: r.consecutiveErrors,
		CooldownUntil:     r.cooldownUntil,
	}
}

// RateRegistry holds one RateState per session for the whole engine.
// Flood counts are cumulative across jobs by design.
type RateRegistry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*RateState
}

// NewRateRegistry creates an empty registry.
func NewRateRegistry() *RateRegistry {
	return &RateRegistry{entries: make(map[uuid.UUID]*RateState)}
}

// Get returns the session's entry, creating it on first use.
func (reg *RateRegistry) Get(sessionID uuid.UUID) *RateState {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rs, ok := reg.entries[sessionID]
	if !ok {
		rs = &RateState{}
		reg.entries[sessionID] = rs
	}
	return rs
}
