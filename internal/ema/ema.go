// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ema implements the exponential-moving-average tracker spec.md §2
// calls the "EMA Registry": every EMA (ema_trace_seats, ema_formation_quality,
// ema_wm_presence, link ema_flow, RELATES_TO precedence/flow/phi_max) derives
// its own step size from its own inter-update interval, rather than sharing
// one global learning-rate constant. This generalizes the teacher's
// uptime.Manager, which tracks a single interval-derived statistic
// (connection uptime) per validator; here every tracked signal gets the
// same interval-adaptive treatment.
package ema

import (
	"math"
	"sync"
	"time"
)

// Tracker is one adaptive EMA. Its step size alpha = 1 - exp(-Δt/tau) is
// recomputed on every update from the elapsed time since the last update,
// and tau itself drifts toward the tracker's own observed update cadence.
type Tracker struct {
	mu sync.Mutex

	value    float64
	hasValue bool

	tau time.Duration // current cadence estimate, seeded then learned

	lastUpdate time.Time
}

// New returns a Tracker seeded with an initial cadence estimate. tauSeed is
// only a bootstrap value; it is overwritten by observed cadence once the
// tracker has updates to learn from.
func New(tauSeed time.Duration) *Tracker {
	if tauSeed <= 0 {
		tauSeed = time.Second
	}
	return &Tracker{tau: tauSeed}
}

// Update folds in a new observation at time now, returning the updated EMA
// value. The very first call seeds the EMA with the observation itself.
func (t *Tracker) Update(now time.Time, observation float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasValue {
		t.value = observation
		t.hasValue = true
		t.lastUpdate = now
		return t.value
	}

	dt := now.Sub(t.lastUpdate)
	if dt < 0 {
		dt = 0
	}

	alpha := 1 - math.Exp(-float64(dt)/float64(t.tau))
	t.value += alpha * (observation - t.value)

	// The cadence itself is EMA-tracked too, with a fixed, generous
	// half-weight toward the newest interval: an interval tracker does not
	// need its own interval tracker, or this recurses forever.
	if dt > 0 {
		newTau := (t.tau + dt) / 2
		t.tau = newTau
	}

	t.lastUpdate = now
	return t.value
}

// Value returns the current EMA without updating it.
func (t *Tracker) Value() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Alpha returns the step size the next Update at `now` would use, without
// mutating state. Useful for the Weight Learner's η_n, which needs the step
// size as a standalone quantity, not folded into a value update.
func (t *Tracker) Alpha(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasValue {
		return 1
	}
	dt := now.Sub(t.lastUpdate)
	if dt < 0 {
		dt = 0
	}
	return 1 - math.Exp(-float64(dt)/float64(t.tau))
}

// Registry is a keyed collection of Trackers, one per (entity, signal) pair.
type Registry struct {
	mu       sync.Mutex
	tauSeed  time.Duration
	trackers map[string]*Tracker
}

// NewRegistry returns a Registry whose Trackers seed from tauSeed.
func NewRegistry(tauSeed time.Duration) *Registry {
	return &Registry{tauSeed: tauSeed, trackers: make(map[string]*Tracker)}
}

// Get returns (creating if needed) the Tracker for key.
func (r *Registry) Get(key string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[key]
	if !ok {
		t = New(r.tauSeed)
		r.trackers[key] = t
	}
	return t
}

// Update is a convenience wrapper around Get(key).Update(now, obs).
func (r *Registry) Update(key string, now time.Time, observation float64) float64 {
	return r.Get(key).Update(now, observation)
}
