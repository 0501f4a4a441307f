// Package watering enforces the pump actuation safety policy: a hard
// duration cap, a cooldown between activations, and a sliding-window
// hourly quota, evaluated per device.
package watering

import (
	"sync"
	"time"
)

const quotaWindow = time.Hour

// Rejection reasons, stable strings surfaced to clients.
const (
	ReasonDurationExceeded = "duration exceeds maximum"
	ReasonCooldownActive   = "cooldown active"
	ReasonQuotaExceeded    = "hourly quota exceeded"
)

// Config holds the safety policy parameters.
type Config struct {
	MaxDuration time.Duration
	Cooldown    time.Duration
	MaxPerHour  int
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed       bool
	Reason        string
	NextAllowedAt *time.Time
	Remaining     int
}

type activation struct {
	at       time.Time
	duration time.Duration
}

type deviceState struct {
	mu          sync.Mutex
	last        time.Time
	activations []activation
}

// Limiter tracks activation history per device. State is in-process and
// partitioned per device; it does not survive a restart.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	devices map[string]*deviceState

	now func() time.Time
}

// NewLimiter creates a limiter with the given policy.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		devices: make(map[string]*deviceState),
		now:     time.Now,
	}
}

func (l *Limiter) device(deviceID string) *deviceState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.devices[deviceID]
	if !ok {
		st = &deviceState{}
		l.devices[deviceID] = st
	}
	return st
}

// evaluate applies the policy in precedence order: duration cap, cooldown,
// hourly quota. Caller must hold the device lock.
func (l *Limiter) evaluate(st *deviceState, duration time.Duration, now time.Time) Decision {
	if duration > l.cfg.MaxDuration {
		return Decision{Reason: ReasonDurationExceeded}
	}

	if !st.last.IsZero() && now.Sub(st.last) < l.cfg.Cooldown {
		next := st.last.Add(l.cfg.Cooldown)
		return Decision{Reason: ReasonCooldownActive, NextAllowedAt: &next}
	}

	windowStart := now.Add(-quotaWindow)
	inWindow := 0
	var oldest time.Time
	for _, a := range st.activations {
		// Strictly after: an activation ages out exactly one window after it
		// happened, which keeps NextAllowedAt honest at the boundary.
		if a.at.After(windowStart) {
			if inWindow == 0 {
				oldest = a.at
			}
			inWindow++
		}
	}
	if inWindow >= l.cfg.MaxPerHour {
		next := oldest.Add(quotaWindow)
		return Decision{Reason: ReasonQuotaExceeded, NextAllowedAt: &next}
	}

	// Remaining anticipates the activation about to be recorded.
	return Decision{Allowed: true, Remaining: l.cfg.MaxPerHour - inWindow - 1}
}

// Check is a read-only probe of the policy; it records nothing.
func (l *Limiter) Check(deviceID string, duration time.Duration) Decision {
	st := l.device(deviceID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return l.evaluate(st, duration, l.now())
}

// Reserve checks the policy and, when allowed, records the activation in the
// same critical section, so two concurrent requests for one device cannot
// both pass. Call Release if the subsequent enqueue fails, so a failed
// enqueue never counts against the quota.
func (l *Limiter) Reserve(deviceID string, duration time.Duration) Decision {
	st := l.device(deviceID)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	d := l.evaluate(st, duration, now)
	if !d.Allowed {
		return d
	}

	st.last = now
	st.activations = append(st.activations, activation{at: now, duration: duration})
	l.trimLocked(st, now)
	return d
}

// Release undoes the most recent reservation for a device.
func (l *Limiter) Release(deviceID string) {
	st := l.device(deviceID)
	st.mu.Lock()
	defer st.mu.Unlock()

	n := len(st.activations)
	if n == 0 {
		return
	}
	st.activations = st.activations[:n-1]
	if n > 1 {
		st.last = st.activations[n-2].at
	} else {
		st.last = time.Time{}
	}
}

// trimLocked drops activations that can no longer influence any decision.
// Caller must hold the device lock.
func (l *Limiter) trimLocked(st *deviceState, now time.Time) {
	cutoff := now.Add(-quotaWindow)
	kept := st.activations[:0]
	for _, a := range st.activations {
		if a.at.After(cutoff) {
			kept = append(kept, a)
		}
	}
	st.activations = kept
}
