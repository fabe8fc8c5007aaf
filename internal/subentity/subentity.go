// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package subentity implements the Sub-Entity Layer: coalition-scale energy
// aggregation, boundary precedence learning between coalitions, and the
// crystallize/split/merge lifecycle that drives subentity.* events.
package subentity

import (
	"math"
	"time"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/internal/ema"
	"github.com/luxfi/substrate/types"
)

// zCreateCutoff is the cohort z-score a pair's boundary precedence must
// cross before a RELATES_TO edge is created at all; this keeps edge
// creation sparse instead of materializing every pair that ever interacts.
const zCreateCutoff = 1.0

// minStableTicks is how long a member set must hold before a dormant
// coalition is eligible to crystallize.
const minStableTicks types.FrameID = 3

// sigma is the energy-to-mass compression used by both the subentity energy
// aggregate and its incremental update: σ(E) = log(1+E).
func sigma(energy float64) float64 {
	return math.Log1p(energy)
}

// EnergyContribution returns one member's contribution m_{n,e}*log(1+E_n) to
// its sub-entity's aggregate energy.
func EnergyContribution(membershipWeight, energy float64) float64 {
	return membershipWeight * sigma(energy)
}

// ApplyEnergyDelta folds a member's energy change into the sub-entity's
// cached aggregate without recomputing the full sum over every member.
func ApplyEnergyDelta(entity *types.SubEntity, membershipWeight, oldEnergy, newEnergy float64) {
	entity.EnergyCache += membershipWeight * (sigma(newEnergy) - sigma(oldEnergy))
}

func pairKey(source, target types.SubEntityID) string {
	return source.String() + "->" + target.String()
}

// Stride is one within-tick causal event: a target node j, member of
// sub-entity t, flipped (or moved) because of energy arriving from a
// source-sub-entity member i during diffusion.
type Stride struct {
	Source                 types.SubEntityID
	Target                 types.SubEntityID
	TargetNode             types.NodeID
	DeltaEnergy            float64 // ΔE_{i→j}
	GapPreThreshold        float64 // θ_j - E_j, measured before the stride
	TargetMembershipWeight float64 // m_{j,t}
}

// BoundaryLearner accumulates causal precedence between sub-entity pairs and
// EMA-smooths it onto each pair's RELATES_TO edge.
type BoundaryLearner struct {
	cohorts *cohort.Stats
	ema     *ema.Registry
}

// NewBoundaryLearner returns a BoundaryLearner. tauSeed bootstraps the
// per-pair EMA of Π before a pair has accrued its own update cadence.
func NewBoundaryLearner(cohorts *cohort.Stats, tauSeed time.Duration) *BoundaryLearner {
	return &BoundaryLearner{cohorts: cohorts, ema: ema.NewRegistry(tauSeed)}
}

// Accumulate folds this tick's strides into each affected pair's running
// Π_{s→t}, returning the updated RELATES_TO value per pair. Because
// Π_{s→t} = Σ_j m_{j,t}·γ_{s→t}(j) and γ is itself a sum over strides,
// summing each stride's m_{j,t}·ΔE/gap directly is equivalent to summing
// the inner γ first and then weighting by m_{j,t}.
func (b *BoundaryLearner) Accumulate(strides []Stride, now time.Time) map[string]float64 {
	raw := make(map[string]float64)
	for _, s := range strides {
		if s.GapPreThreshold <= 0 {
			continue
		}
		raw[pairKey(s.Source, s.Target)] += s.TargetMembershipWeight * (s.DeltaEnergy / s.GapPreThreshold)
	}

	pi := make(map[string]float64, len(raw))
	for key, v := range raw {
		pi[key] = b.ema.Update(key, now, v)
	}
	return pi
}

// ShouldCreateRelation reports whether a pair's current Π has crossed its
// cohort z-score threshold, gating sparse RELATES_TO edge creation.
func (b *BoundaryLearner) ShouldCreateRelation(key cohort.Key, pi float64) bool {
	return b.cohorts.ObserveAndZScore(key, pi) >= zCreateCutoff
}

// ShouldCrystallize reports whether a dormant coalition's member set has
// held stable long enough, and its energy has cleared its cohort threshold,
// to promote it to an active sub-entity.
func ShouldCrystallize(sub *types.SubEntity, currentFrame types.FrameID) bool {
	if sub.Active {
		return false
	}
	stableFor := currentFrame - sub.StableSinceFrame
	return stableFor >= minStableTicks && sub.EnergyCache >= sub.ThresholdCache
}

// ShouldSplit reports whether a coalition's internal cohesion has fallen far
// enough below its cohort to warrant splitting it.
func ShouldSplit(cohorts *cohort.Stats, key cohort.Key, cohesion, zSplit float64) bool {
	return cohorts.ObserveAndZScore(key, cohesion) < -zSplit
}

// ShouldMerge reports whether a pair's precedence has sustained far enough
// above its cohort to warrant merging the two coalitions.
func ShouldMerge(cohorts *cohort.Stats, key cohort.Key, precedence, zMerge float64) bool {
	return cohorts.ZScore(key, precedence) > zMerge
}
