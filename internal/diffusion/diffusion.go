// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package diffusion implements the Diffusion Engine and the Flip Detector
// and Decay that follow it in the tick pipeline: energy redistribution
// across links for one frame, conservative except for injection and decay,
// plus threshold-crossing detection and per-node half-life decay.
package diffusion

import (
	"math"
	"sort"
	"time"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/types"
)

// defaultFlipTopK is the K DetectFlips uses when the caller passes
// topK <= 0; any K is clipped to flipTopKCeiling. K is taken from the
// caller as given and is not derived from cohort statistics.
const (
	defaultFlipTopK = 25
	flipTopKCeiling = 50
	kappaFloor      = 1e-6
)

// Outflow returns α_n = tanh((E_n - θ_n)/κ), the fraction of a node's energy
// that leaves it this frame. Only called for nodes already over threshold.
func Outflow(energy, threshold, kappa float64) float64 {
	if kappa <= 0 {
		kappa = kappaFloor
	}
	return math.Tanh((energy - threshold) / kappa)
}

// OutLink is the minimal shape the diffusion engine needs from a graph link;
// kept decoupled from internal/graph so this package has no import on it.
type OutLink struct {
	Target types.NodeID
	Weight float64
}

// NodeState is the minimal per-node input to one diffusion pass. Kappa is
// the cohort-derived outflow scale for this node (see Kappa), computed by
// the caller once per frame from the node's cohort, not from the node alone.
type NodeState struct {
	ID        types.NodeID
	Energy    float64
	Threshold float64
	Kappa     float64
	OutLinks  []OutLink
}

// Kappa derives κ for a cohort from its energy spread: the sample standard
// deviation of the energies observed in the cohort so far (not a rank-based
// scale), falling back to kappaFloor while that is zero. energy is recorded
// into the cohort after κ is read.
func Kappa(cohorts *cohort.Stats, key cohort.Key, energy float64) float64 {
	std := cohorts.StdDev(key)
	cohorts.Observe(key, energy)
	if std <= 0 {
		return kappaFloor
	}
	return std
}

// Diffuse computes the per-node energy deltas for one frame. Nodes at or
// under threshold emit nothing. Outflow from a node is distributed across
// its outgoing links in proportion to link weight.
func Diffuse(nodes []NodeState) map[types.NodeID]float64 {
	deltas := make(map[types.NodeID]float64, len(nodes))
	for _, n := range nodes {
		if n.Energy <= n.Threshold || len(n.OutLinks) == 0 {
			continue
		}
		alpha := Outflow(n.Energy, n.Threshold, n.Kappa)
		if alpha <= 0 {
			continue
		}

		var totalWeight float64
		for _, l := range n.OutLinks {
			totalWeight += l.Weight
		}
		if totalWeight <= 0 {
			continue
		}

		outflow := alpha * n.Energy
		deltas[n.ID] -= outflow
		for _, l := range n.OutLinks {
			deltas[l.Target] += outflow * l.Weight / totalWeight
		}
	}
	return deltas
}

// ConservationOK reports whether the net of all deltas is within 1% of the
// total magnitude moved, per the conservation invariant.
func ConservationOK(deltas map[types.NodeID]float64) bool {
	var net, magnitude float64
	for _, d := range deltas {
		net += d
		magnitude += math.Abs(d)
	}
	if magnitude == 0 {
		return true
	}
	return math.Abs(net)/magnitude <= 0.01
}

// FlipEvent records a single threshold crossing for node.flip emission.
type FlipEvent struct {
	NodeID     types.NodeID
	EnergyPre  float64
	EnergyPost float64
	Threshold  float64
}

func (f FlipEvent) delta() float64 {
	return math.Abs(f.EnergyPost - f.EnergyPre)
}

// DetectFlips finds every node whose energy crossed its threshold between
// pre and post, and returns the top-K by |ΔE|, K clipped to [1,50].
func DetectFlips(pre, post, threshold map[types.NodeID]float64, topK int) []FlipEvent {
	if topK <= 0 {
		topK = defaultFlipTopK
	}
	if topK > flipTopKCeiling {
		topK = flipTopKCeiling
	}

	var flips []FlipEvent
	for id, postE := range post {
		preE := pre[id]
		th := threshold[id]
		crossedUp := preE < th && th <= postE
		crossedDown := postE < th && th <= preE
		if crossedUp || crossedDown {
			flips = append(flips, FlipEvent{NodeID: id, EnergyPre: preE, EnergyPost: postE, Threshold: th})
		}
	}

	sort.Slice(flips, func(i, j int) bool { return flips[i].delta() > flips[j].delta() })
	if len(flips) > topK {
		flips = flips[:topK]
	}
	return flips
}

// Decay applies half-life decay E_n <- E_n * exp(-Δt/τ̂_n) with the tau the
// caller passes; a tau <= 0 leaves energy unchanged. The scheduler passes
// Node.HalfLife, or SeedHalfLife() when that is zero; nothing learns a
// per-node tau from activation history.
func Decay(energy float64, dt time.Duration, tau time.Duration) float64 {
	if tau <= 0 {
		return energy
	}
	return energy * math.Exp(-float64(dt)/float64(tau))
}

// SeedHalfLife returns a decay time constant that produces ~10% decay every
// 5 minutes, the value used for any node whose HalfLife is unset.
func SeedHalfLife() time.Duration {
	const window = 5 * time.Minute
	const retained = 0.9
	tau := -float64(window) / math.Log(retained)
	return time.Duration(tau)
}
