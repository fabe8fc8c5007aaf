// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package injector

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/internal/retriever"
	"github.com/luxfi/substrate/types"
)

func idOf(b byte) types.NodeID {
	var id ids.ID
	id[0] = b
	return id
}

func TestValidTextEnforcesMinimumLength(t *testing.T) {
	require.False(t, ValidText("short"))
	require.True(t, ValidText("long enough text"))
}

func TestBudgetScalesWithSimilarity(t *testing.T) {
	inj := New(cohort.New())
	hits := []retriever.Hit{{NodeID: idOf(1), Similarity: 0.9}}
	b1 := inj.Budget(hits, 0.5, "log")

	inj2 := New(cohort.New())
	lowHits := []retriever.Hit{{NodeID: idOf(1), Similarity: 0.1}}
	b2 := inj2.Budget(lowHits, 0.5, "log")

	require.Greater(t, b1, b2)
}

func TestAllocateDistributesAcrossDeficits(t *testing.T) {
	inj := New(cohort.New())
	deficits := []Deficit{
		{NodeID: idOf(1), Similarity: 0.8, Energy: 0, Threshold: 1},
		{NodeID: idOf(2), Similarity: 0.6, Energy: 5, Threshold: 1},
	}
	debug := inj.Allocate(deficits, 10, 1.0, 0.5, 0, 0)
	require.Greater(t, len(debug.Allocations), 0)

	var total float64
	for _, a := range debug.Allocations {
		total += a.Delta
	}
	require.Greater(t, total, 0.0)
}

func TestAllocateWithZeroBudgetProducesNoAllocations(t *testing.T) {
	inj := New(cohort.New())
	deficits := []Deficit{{NodeID: idOf(1), Similarity: 0.8, Energy: 0, Threshold: 1}}
	debug := inj.Allocate(deficits, 0, 1.0, 0.5, 0, 0)
	require.Empty(t, debug.Allocations)
}
