// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package injector implements the Stimulus Injector: the dual-channel
// (top-up + amplify) allocator that turns retrieval hits and a health-scaled
// budget into per-node energy deltas. It never mutates graph state directly;
// callers apply the returned deltas.
package injector

import (
	"math"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/internal/retriever"
	"github.com/luxfi/substrate/types"
)

// minTextLength is the upstream filter spec.md calls out explicitly; the
// injector enforces it so a malformed caller can't bypass it.
const minTextLength = 8

// Deficit describes one retrieval hit's current energy state, needed to
// split it between the top-up and amplify channels.
type Deficit struct {
	NodeID     types.NodeID
	Similarity float64
	Energy     float64 // E_n
	Threshold  float64 // θ_n
}

// Allocation is one node's energy delta from a single injection pass.
type Allocation struct {
	NodeID types.NodeID
	Delta  float64
}

// Debug carries the telemetry spec.md requires on stimulus.injection.debug.
type Debug struct {
	Budget      float64
	TopBudget   float64
	AmpBudget   float64
	Lambda      float64
	Allocations []Allocation
}

var deficitEntropyKey = cohort.Key{TypeName: "deficit_entropy", Scope: types.ScopeProtocol}
var alignmentKey = cohort.Key{TypeName: "wm_alignment", Scope: types.ScopeProtocol}

// Injector computes the top-up/amplify split and the per-node deltas inside it.
type Injector struct {
	cohorts *cohort.Stats

	// healthGate maps a recent system-health scalar to f(ρ), learned online
	// by tracking where ρ falls in its own cohort.
	healthKey cohort.Key
	// sourceGate maps source_type to g(source_type), learned by regressing
	// on flip yield; represented here as an online-updated EMA-like gain
	// per source, seeded at 1 and nudged by ObserveFlipYield.
	sourceGates map[string]float64
}

// New returns an Injector with all per-source gates seeded neutral.
func New(cohorts *cohort.Stats) *Injector {
	return &Injector{
		cohorts:     cohorts,
		healthKey:   cohort.Key{TypeName: "system_health", Scope: types.ScopeProtocol},
		sourceGates: make(map[string]float64),
	}
}

// ObserveFlipYield nudges g(source_type) toward sources that actually
// produce flips, by a fixed fraction of the gap to the observed yield.
func (inj *Injector) ObserveFlipYield(sourceType string, yield float64) {
	const step = 0.1
	gate, ok := inj.sourceGates[sourceType]
	if !ok {
		gate = 1
	}
	inj.sourceGates[sourceType] = gate + step*(yield-gate)
}

func (inj *Injector) sourceGate(sourceType string) float64 {
	if g, ok := inj.sourceGates[sourceType]; ok {
		return g
	}
	return 1
}

// healthGate is f(ρ): an isotonic-in-spirit mapping implemented as a
// logistic squash of ρ's cohort z-score, so a healthier-than-usual frame
// always yields a larger gate than a worse one without a fixed cutoff.
func (inj *Injector) healthGate(rho float64) float64 {
	z := inj.cohorts.ObserveAndZScore(inj.healthKey, rho)
	return 1 / (1 + math.Exp(-z))
}

// Budget computes B = Σ sim_i · f(ρ) · g(source_type).
func (inj *Injector) Budget(hits []retriever.Hit, rho float64, sourceType string) float64 {
	f := inj.healthGate(rho)
	g := inj.sourceGate(sourceType)
	var b float64
	for _, h := range hits {
		b += h.Similarity * f * g
	}
	return b
}

// Allocate splits budget B across deficits using the adaptive top-up/amplify
// split, applies direction priors for link-targeted stimuli, and scales the
// whole result by peripheral alignment to current working memory.
//
// precedenceForward/precedenceBackward are non-zero only for link-targeted
// stimuli; pass 0, 0 for node-targeted or free-text stimuli.
func (inj *Injector) Allocate(
	deficits []Deficit,
	budget float64,
	activeNodeDeficitEntropy float64,
	stimulusWMSimilarity float64,
	precedenceForward, precedenceBackward float64,
) Debug {
	if len(deficits) == 0 || budget <= 0 {
		return Debug{Budget: budget}
	}

	zH := inj.cohorts.ObserveAndZScore(deficitEntropyKey, activeNodeDeficitEntropy)
	lambda := sigmoid(zH)

	zAlign := inj.cohorts.ObserveAndZScore(alignmentKey, stimulusWMSimilarity)
	periphery := math.Exp(zAlign)

	topBudget := lambda * budget * periphery
	ampBudget := (1 - lambda) * budget * periphery

	topWeights := make(map[types.NodeID]float64, len(deficits))
	var topTotal float64
	ampWeights := make(map[types.NodeID]float64, len(deficits))
	var ampTotal float64
	for _, d := range deficits {
		deficit := d.Threshold - d.Energy
		if deficit < 0 {
			deficit = 0
		}
		topWeights[d.NodeID] = deficit
		topTotal += deficit

		amp := math.Log1p(d.Energy)
		if amp < 0 {
			amp = 0
		}
		ampWeights[d.NodeID] = amp
		ampTotal += amp
	}

	allocations := make([]Allocation, 0, len(deficits))
	for _, d := range deficits {
		var delta float64
		if topTotal > 0 {
			delta += topBudget * topWeights[d.NodeID] / topTotal
		}
		if ampTotal > 0 {
			delta += ampBudget * ampWeights[d.NodeID] / ampTotal
		}
		delta *= directionBias(d.NodeID, deficits, precedenceForward, precedenceBackward)
		if delta > 0 {
			allocations = append(allocations, Allocation{NodeID: d.NodeID, Delta: delta})
		}
	}

	return Debug{
		Budget:      budget,
		TopBudget:   topBudget,
		AmpBudget:   ampBudget,
		Lambda:      lambda,
		Allocations: allocations,
	}
}

// directionBias returns 1 when both priors are zero (no link-targeted
// stimulus context) or there are fewer than two deficits. Otherwise it
// returns 1+precedenceForward for the first deficit (the source endpoint),
// 1+precedenceBackward for the second (the target), and 1 for any other
// node; endpoint identity is carried by the caller via deficit ordering.
func directionBias(id types.NodeID, deficits []Deficit, precedenceForward, precedenceBackward float64) float64 {
	if precedenceForward == 0 && precedenceBackward == 0 {
		return 1
	}
	if len(deficits) < 2 {
		return 1
	}
	switch id {
	case deficits[0].NodeID:
		return 1 + precedenceForward
	case deficits[1].NodeID:
		return 1 + precedenceBackward
	default:
		return 1
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// ValidText enforces the minimum-length text filter upstream of retrieval.
func ValidText(text string) bool {
	return len(text) >= minTextLength
}
