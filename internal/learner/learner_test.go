// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package learner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/types"
)

func TestApplyNeverTouchesEnergy(t *testing.T) {
	l := New(cohort.New(), time.Second)
	n := &types.Node{ID: idOf(1), TypeName: "concept"}
	n.Energy = map[string]float32{"default": 5}

	l.Apply(n, Signal{TypeName: "concept", Scope: types.ScopePersonal, TraceSeats: 3, Completeness: 1, Evidence: 1, Novelty: 1, WMPresence: 1}, time.Unix(0, 0))

	require.Equal(t, float32(5), n.Energy["default"])
}

func TestApplyUpdatesLogWeightAndEMAs(t *testing.T) {
	l := New(cohort.New(), time.Second)
	n := &types.Node{ID: idOf(1), TypeName: "concept"}

	before := n.LogWeight
	delta := l.Apply(n, Signal{TypeName: "concept", Scope: types.ScopePersonal, TraceSeats: 3, Completeness: 1, Evidence: 1, Novelty: 1, WMPresence: 1}, time.Unix(0, 0))

	require.Equal(t, before+delta, n.LogWeight)
	require.Equal(t, 3.0, n.EMATraceSeats)
	require.Equal(t, 1.0, n.EMAFormationQuality)
	require.Equal(t, 1.0, n.EMAWMPresence)
}

func TestApplyBatchSummarizesTopImpacted(t *testing.T) {
	l := New(cohort.New(), time.Second)
	nodes := []*types.Node{
		{ID: idOf(1), TypeName: "concept"},
		{ID: idOf(2), TypeName: "concept"},
	}
	signals := map[types.NodeID]Signal{
		idOf(1): {TypeName: "concept", Scope: types.ScopePersonal, TraceSeats: 1, Completeness: 1, Evidence: 1, Novelty: 1},
		idOf(2): {TypeName: "concept", Scope: types.ScopePersonal, TraceSeats: 99, Completeness: 1, Evidence: 1, Novelty: 1},
	}

	result := l.ApplyBatch(nodes, signals, time.Unix(0, 0))
	require.Equal(t, 2, result.UpdatedCount)
	require.Len(t, result.TopEntitiesImpacted, 2)
	require.Equal(t, idOf(2), result.TopEntitiesImpacted[0])
}

func TestLinkShouldStrengthenRequiresSubThresholdEndpointsAndAFlip(t *testing.T) {
	require.True(t, LinkShouldStrengthen(true, true, true, false))
	require.False(t, LinkShouldStrengthen(true, true, false, false))
	require.False(t, LinkShouldStrengthen(true, false, true, true))
}
