// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package diffusion

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func idOf(b byte) ids.ID {
	var id ids.ID
	id[0] = b
	return id
}

func TestOutflowIsZeroAtThreshold(t *testing.T) {
	require.InDelta(t, 0.0, Outflow(5, 5, 1), 1e-9)
}

func TestOutflowIsPositiveAboveThreshold(t *testing.T) {
	require.Greater(t, Outflow(10, 5, 1), 0.0)
}

func TestDiffuseConservesEnergy(t *testing.T) {
	source := idOf(1)
	target := idOf(2)
	nodes := []NodeState{
		{ID: source, Energy: 10, Threshold: 2, Kappa: 4, OutLinks: []OutLink{{Target: target, Weight: 1}}},
		{ID: target, Energy: 0, Threshold: 5, Kappa: 4},
	}
	deltas := Diffuse(nodes)
	require.True(t, ConservationOK(deltas))
	require.Less(t, deltas[source], 0.0)
	require.Greater(t, deltas[target], 0.0)
}

func TestDiffuseSkipsSubThresholdNodes(t *testing.T) {
	nodes := []NodeState{
		{ID: idOf(1), Energy: 1, Threshold: 5, Kappa: 1, OutLinks: []OutLink{{Target: idOf(2), Weight: 1}}},
	}
	deltas := Diffuse(nodes)
	require.Empty(t, deltas)
}

func TestDetectFlipsFindsUpwardAndDownwardCrossings(t *testing.T) {
	pre := map[ids.ID]float64{idOf(1): 1, idOf(2): 10}
	post := map[ids.ID]float64{idOf(1): 10, idOf(2): 1}
	threshold := map[ids.ID]float64{idOf(1): 5, idOf(2): 5}

	flips := DetectFlips(pre, post, threshold, 25)
	require.Len(t, flips, 2)
}

func TestDetectFlipsClipsToTopK(t *testing.T) {
	pre := map[ids.ID]float64{}
	post := map[ids.ID]float64{}
	threshold := map[ids.ID]float64{}
	for i := byte(0); i < 60; i++ {
		id := idOf(i)
		pre[id] = 0
		post[id] = 10
		threshold[id] = 1
	}
	flips := DetectFlips(pre, post, threshold, 100)
	require.Len(t, flips, flipTopKCeiling)
}

func TestDecayReducesEnergyOverTime(t *testing.T) {
	e := Decay(100, 5*time.Minute, SeedHalfLife())
	require.InDelta(t, 90, e, 1)
}

func TestDecayNoOpWithoutElapsedTime(t *testing.T) {
	e := Decay(100, 0, SeedHalfLife())
	require.InDelta(t, 100, e, 1e-9)
}
