// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cohort implements the running rank/z-score estimator spec.md §4
// calls "Cohort Stats": a per-(type_name, scope) sample used to standardize
// every adaptive signal in the engine (thresholds, injection budgets,
// learning rates) so that nothing is compared against a fixed literal.
// Standardization uses van der Waerden ranks, which stay well-defined for
// any cohort size N >= 1, unlike a plain mean/stddev z-score.
package cohort

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/luxfi/substrate/types"
)

// Key identifies a cohort: nodes/sub-entities of the same type at the same
// scope are standardized against each other, never globally.
type Key struct {
	TypeName string
	Scope    types.Scope
}

// maxSamples bounds memory for a long-lived cohort; it is a window size,
// not a statistical constant the algorithms key off of.
const maxSamples = 2048

type cohortSample struct {
	mu      sync.Mutex
	samples []float64
	next    int // ring cursor once len(samples) == maxSamples
}

func (c *cohortSample) observe(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.samples) < maxSamples {
		c.samples = append(c.samples, v)
		return
	}
	c.samples[c.next] = v
	c.next = (c.next + 1) % maxSamples
}

func (c *cohortSample) snapshot() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.samples))
	copy(out, c.samples)
	return out
}

// Stats is the process-wide (per-citizen) cohort registry.
type Stats struct {
	mu      sync.RWMutex
	cohorts map[Key]*cohortSample
	normal  distuv.Normal
}

// New returns an empty Stats registry.
func New() *Stats {
	return &Stats{
		cohorts: make(map[Key]*cohortSample),
		normal:  distuv.Normal{Mu: 0, Sigma: 1},
	}
}

func (s *Stats) cohortFor(k Key) *cohortSample {
	s.mu.RLock()
	c, ok := s.cohorts[k]
	s.mu.RUnlock()
	if ok {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cohorts[k]; ok {
		return c
	}
	c = &cohortSample{}
	s.cohorts[k] = c
	return c
}

// Observe records a new sample for the cohort.
func (s *Stats) Observe(k Key, value float64) {
	s.cohortFor(k).observe(value)
}

// ZScore returns the van der Waerden rank z-score of value against the
// cohort's current sample, treating value as if it were itself a member of
// the cohort (so a first observation always yields z=0, the median).
func (s *Stats) ZScore(k Key, value float64) float64 {
	sample := s.cohortFor(k).snapshot()
	n := len(sample) + 1

	// mid-rank: count strictly-less + half of ties, 1-indexed.
	less, equal := 0, 0
	for _, v := range sample {
		switch {
		case v < value:
			less++
		case v == value:
			equal++
		}
	}
	rank := float64(less) + float64(equal)/2 + 1

	p := rank / (float64(n) + 1)
	return s.normal.Quantile(p)
}

// ObserveAndZScore is the common call shape: record then standardize.
func (s *Stats) ObserveAndZScore(k Key, value float64) float64 {
	z := s.ZScore(k, value)
	s.Observe(k, value)
	return z
}

// Rank returns the 1-indexed ascending rank of value within the cohort
// sample (ties broken by stable sort order), used by threshold selection
// where an ordinal position, not a z-score, is what's needed.
func (s *Stats) Rank(k Key, value float64) int {
	sample := s.cohortFor(k).snapshot()
	sorted := append(sample, value)
	sort.Float64s(sorted)
	for i, v := range sorted {
		if v == value {
			return i + 1
		}
	}
	return len(sorted)
}

// Size reports the current cohort sample size.
func (s *Stats) Size(k Key) int {
	return len(s.cohortFor(k).snapshot())
}

// Mean returns the cohort sample mean, or 0 for an empty cohort.
func (s *Stats) Mean(k Key) float64 {
	sample := s.cohortFor(k).snapshot()
	if len(sample) == 0 {
		return 0
	}
	var sum float64
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}

// StdDev returns the cohort sample standard deviation, or 0 for a cohort of
// fewer than two samples (nothing to spread yet).
func (s *Stats) StdDev(k Key) float64 {
	sample := s.cohortFor(k).snapshot()
	if len(sample) < 2 {
		return 0
	}
	mean := s.Mean(k)
	var sumSq float64
	for _, v := range sample {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(sample)-1))
}
