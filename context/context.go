// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package context carries the per-citizen runtime dependencies (logger,
// metrics, clock) the way the teacher's consensus Context threads node
// identity and validator state through a chain's VM. Every substrate
// subsystem takes a *Context at construction instead of reaching for a
// process-wide singleton (spec.md §9).
package context

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/substrate/log"
	"github.com/luxfi/substrate/metrics"
)

// Clock is the time source every tick-driven subsystem reads through,
// substitutable in tests so ticks advance deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Context is the root dependency bag for one citizen instance.
type Context struct {
	CitizenID string
	ChainID   ids.ID // stable id derived from CitizenID, used for log correlation

	Log     log.Logger
	Metrics *metrics.Registry
	Clock   Clock

	// mu guards fields mutated after construction (Clock, via WithClock).
	mu sync.RWMutex
}

// New constructs a root Context for a citizen.
func New(citizenID string, logger log.Logger, reg *metrics.Registry) *Context {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if reg == nil {
		reg = metrics.NewRegistry(nil)
	}
	return &Context{
		CitizenID: citizenID,
		ChainID:   ids.ID(sha256.Sum256([]byte(citizenID))),
		Log:       logger.With("citizen_id", citizenID),
		Metrics:   reg,
		Clock:     realClock{},
	}
}

// WithClock overrides the clock, for deterministic tests.
func (c *Context) WithClock(clock Clock) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Clock = clock
	return c
}

type contextKeyType struct{}

var contextKey = contextKeyType{}

// WithContext attaches a citizen Context to a stdlib context.Context.
func WithContext(ctx context.Context, cc *Context) context.Context {
	return context.WithValue(ctx, contextKey, cc)
}

// FromContext extracts the citizen Context, or nil if absent.
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(contextKey).(*Context)
	return c
}

