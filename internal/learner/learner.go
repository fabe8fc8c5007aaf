// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package learner implements the Weight Learner: persistent log_weight
// updates driven by discrete reinforcement signals (Hamilton-apportioned
// seats) and continuous formation/presence signals, all standardized by
// cohort z-scores and stepped by each node's own adaptive learning rate.
// Stimuli never flow through this package and this package never touches
// energy: the separation between energy mass and weight mass is load-bearing.
package learner

import (
	"math"
	"sort"
	"time"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/internal/ema"
	"github.com/luxfi/substrate/types"
)

// Signal is one node's reinforcement inputs for a single learning pass.
type Signal struct {
	TypeName         string
	Scope            types.Scope
	TraceSeats       float64 // this pass's Hamilton-apportioned seat count
	Completeness     float64
	Evidence         float64
	Novelty          float64
	WMPresence       float64 // 1 if selected into working memory this tick, else 0
}

// FormationQuality computes q = (completeness * evidence * novelty)^(1/3).
func FormationQuality(completeness, evidence, novelty float64) float64 {
	product := completeness * evidence * novelty
	if product <= 0 {
		return 0
	}
	return math.Cbrt(product)
}

// BatchResult is the summary emitted as weights.updated once per pass.
type BatchResult struct {
	UpdatedCount        int
	TopEntitiesImpacted []types.NodeID
	DeltaSummary        map[types.NodeID]float64
}

// Learner holds the cohort and per-node EMA state shared across passes.
type Learner struct {
	cohorts *cohort.Stats
	ema     *ema.Registry
}

// New returns a Learner. tauSeed bootstraps every per-node EMA and adaptive
// step tracker before enough passes have accrued to learn real cadence.
func New(cohorts *cohort.Stats, tauSeed time.Duration) *Learner {
	return &Learner{cohorts: cohorts, ema: ema.NewRegistry(tauSeed)}
}

func trackerKey(id types.NodeID, axis string) string {
	return id.String() + ":" + axis
}

func axisCohort(typeName, axis string, scope types.Scope) cohort.Key {
	return cohort.Key{TypeName: typeName + "#" + axis, Scope: scope}
}

// Apply folds one node's signal into its EMAs, standardizes each against its
// cohort, and returns (applying) the resulting Δlog_weight.
func (l *Learner) Apply(node *types.Node, sig Signal, now time.Time) float64 {
	q := FormationQuality(sig.Completeness, sig.Evidence, sig.Novelty)

	node.EMATraceSeats = l.ema.Update(trackerKey(node.ID, "seats"), now, sig.TraceSeats)
	node.EMAFormationQuality = l.ema.Update(trackerKey(node.ID, "form"), now, q)
	node.EMAWMPresence = l.ema.Update(trackerKey(node.ID, "wm"), now, sig.WMPresence)

	zRein := l.cohorts.ObserveAndZScore(axisCohort(sig.TypeName, "seats", sig.Scope), node.EMATraceSeats)
	zForm := l.cohorts.ObserveAndZScore(axisCohort(sig.TypeName, "form", sig.Scope), node.EMAFormationQuality)
	zWM := l.cohorts.ObserveAndZScore(axisCohort(sig.TypeName, "wm", sig.Scope), node.EMAWMPresence)

	step := l.ema.Get(trackerKey(node.ID, "step"))
	eta := step.Alpha(now)
	step.Update(now, 0)

	delta := eta * (zRein + zForm + zWM)
	node.LogWeight += delta
	node.LastUpdateTimestamp = now
	return delta
}

// ApplyBatch runs Apply across every node with a signal this pass and builds
// the weights.updated summary.
func (l *Learner) ApplyBatch(nodes []*types.Node, signals map[types.NodeID]Signal, now time.Time) BatchResult {
	deltas := make(map[types.NodeID]float64, len(signals))
	for _, n := range nodes {
		sig, ok := signals[n.ID]
		if !ok {
			continue
		}
		deltas[n.ID] = l.Apply(n, sig, now)
	}
	return BatchResult{
		UpdatedCount:        len(deltas),
		TopEntitiesImpacted: topByAbsDelta(deltas, 10),
		DeltaSummary:        deltas,
	}
}

func topByAbsDelta(deltas map[types.NodeID]float64, k int) []types.NodeID {
	type entry struct {
		id    types.NodeID
		delta float64
	}
	list := make([]entry, 0, len(deltas))
	for id, d := range deltas {
		list = append(list, entry{id: id, delta: math.Abs(d)})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].delta > list[j].delta })
	if len(list) > k {
		list = list[:k]
	}
	out := make([]types.NodeID, len(list))
	for i, e := range list {
		out[i] = e.id
	}
	return out
}

// LinkShouldStrengthen applies the newness gate: a link only strengthens
// when both endpoints were sub-threshold before the stride and at least one
// of them flipped over threshold during it. Active-to-active chatter between
// two already-crossed nodes never strengthens the link between them.
func LinkShouldStrengthen(sourceWasSubThreshold, targetWasSubThreshold, sourceFlipped, targetFlipped bool) bool {
	return sourceWasSubThreshold && targetWasSubThreshold && (sourceFlipped || targetFlipped)
}
