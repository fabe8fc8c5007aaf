// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package subentity

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/types"
)

func idOf(b byte) ids.ID {
	var id ids.ID
	id[0] = b
	return id
}

func TestApplyEnergyDeltaIsCompressive(t *testing.T) {
	e := &types.SubEntity{}
	ApplyEnergyDelta(e, 1.0, 0, 10)
	first := e.EnergyCache

	e2 := &types.SubEntity{}
	ApplyEnergyDelta(e2, 1.0, 10, 20)
	second := e2.EnergyCache

	require.Greater(t, first, second)
}

func TestBoundaryLearnerAccumulatesAndSmooths(t *testing.T) {
	bl := NewBoundaryLearner(cohort.New(), time.Second)
	src, tgt := idOf(1), idOf(2)
	strides := []Stride{
		{Source: src, Target: tgt, TargetNode: idOf(3), DeltaEnergy: 4, GapPreThreshold: 2, TargetMembershipWeight: 1},
	}
	pi := bl.Accumulate(strides, time.Unix(0, 0))
	require.InDelta(t, 2.0, pi[pairKey(src, tgt)], 1e-9)
}

func TestShouldCrystallizeRequiresStableWindowAndEnergy(t *testing.T) {
	sub := &types.SubEntity{StableSinceFrame: 0, EnergyCache: 10, ThresholdCache: 5}
	require.False(t, ShouldCrystallize(sub, 1))
	require.True(t, ShouldCrystallize(sub, 3))

	sub.ThresholdCache = 20
	require.False(t, ShouldCrystallize(sub, 3))
}

func TestShouldSplitAndMergeUseCohortZScore(t *testing.T) {
	cohorts := cohort.New()
	key := cohort.Key{TypeName: "cohesion", Scope: types.ScopePersonal}
	for i := 0; i < 20; i++ {
		cohorts.Observe(key, 10)
	}
	require.True(t, ShouldSplit(cohorts, key, -100, 1.0))
	require.False(t, ShouldSplit(cohorts, key, 10, 1.0))

	mergeKey := cohort.Key{TypeName: "precedence", Scope: types.ScopePersonal}
	for i := 0; i < 20; i++ {
		cohorts.Observe(mergeKey, 1)
	}
	require.True(t, ShouldMerge(cohorts, mergeKey, 1000, 1.0))
}
