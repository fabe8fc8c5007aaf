// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package breaker implements a per-call circuit breaker guarding the three
// external collaborators the tick loop calls out to: the Semantic
// Retriever, persistence, and the event broadcaster's durable spill. A
// tripped breaker fails fast instead of letting the tick loop block on a
// degraded dependency.
package breaker

import (
	"sync"
	"time"

	"github.com/luxfi/substrate/types"
)

type state int

const (
	closed state = iota
	open
	halfOpen
)

// Breaker is a simple consecutive-failure circuit breaker with a cooldown
// before it allows a single trial call through again.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	cooldown         time.Duration

	st          state
	failures    int
	openedAt    time.Time
}

// New returns a Breaker that opens after failureThreshold consecutive
// failures and stays open for cooldown before allowing a trial call.
func New(failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &Breaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed right now. Call it before every
// guarded invocation.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case closed:
		return true
	case open:
		if now.Sub(b.openedAt) >= b.cooldown {
			b.st = halfOpen
			return true
		}
		return false
	default: // halfOpen: the probe admitted on the open->halfOpen transition is in flight; refuse others until it resolves
		return false
	}
}

// RecordSuccess closes the breaker and resets its failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = closed
	b.failures = 0
}

// RecordFailure counts a failure, tripping the breaker open once the
// threshold is reached. A failure while half-open reopens immediately.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.st = open
		b.openedAt = now
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.st = open
		b.openedAt = now
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st == open
}

// ErrCircuitOpen is returned by guarded call sites when Allow denies entry.
var ErrCircuitOpen = types.ErrCircuitOpen

// Run executes fn if the breaker allows it, recording the outcome.
// ErrCircuitOpen is returned without invoking fn when the breaker is open.
func (b *Breaker) Run(now time.Time, fn func() error) error {
	if !b.Allow(now) {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure(now)
		return err
	}
	b.RecordSuccess()
	return nil
}
