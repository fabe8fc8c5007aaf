// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package threshold implements the Threshold Oracle: per-(type_name, scope)
// baseline thresholds derived from cohort statistics, never a fixed literal.
// Every node's θ[entity_id] comes from here rather than from a configured
// constant, so two citizens with different energy distributions for the
// same node type end up with different crossing points.
package threshold

import (
	"time"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/internal/ema"
)

// floor keeps θ > 0 even for a brand-new cohort with zero spread.
const floor = 1e-6

// stdCoefficient sets how far above the cohort mean the baseline sits. It is
// a shape parameter of the estimator, not a per-entity threshold value.
const stdCoefficient = 0.5

// Oracle maintains one adaptive baseline per cohort. Each call to Observe
// both widens the cohort's statistics and nudges that cohort's EMA-smoothed
// baseline, so θ drifts with the population instead of jumping on every
// single sample.
type Oracle struct {
	cohorts *cohort.Stats
	ema     *ema.Registry
}

// New returns an Oracle backed by the given cohort registry. tauSeed bootstraps
// the EMA smoothing of the baseline before enough ticks have passed to learn
// a real cadence.
func New(cohorts *cohort.Stats, tauSeed time.Duration) *Oracle {
	return &Oracle{cohorts: cohorts, ema: ema.NewRegistry(tauSeed)}
}

func cohortKey(k cohort.Key) string {
	return string(k.Scope) + "/" + k.TypeName
}

// Observe folds a new entity-energy sample into the cohort and returns the
// resulting threshold for that cohort.
func (o *Oracle) Observe(k cohort.Key, energy float64, now time.Time) float64 {
	o.cohorts.Observe(k, energy)
	return o.update(k, now)
}

// Threshold returns the current threshold for the cohort without recording a
// new sample, seeding the EMA from the cohort's existing statistics if this
// is the first call for k.
func (o *Oracle) Threshold(k cohort.Key, now time.Time) float64 {
	if o.ema.Get(cohortKey(k)).Value() == 0 && o.cohorts.Size(k) == 0 {
		return floor
	}
	return o.update(k, now)
}

func (o *Oracle) update(k cohort.Key, now time.Time) float64 {
	baseline := o.cohorts.Mean(k) + stdCoefficient*o.cohorts.StdDev(k)
	if baseline <= 0 {
		baseline = floor
	}
	smoothed := o.ema.Update(cohortKey(k), now, baseline)
	if smoothed < floor {
		smoothed = floor
	}
	return smoothed
}
