// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package learner

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/types"
)

func idOf(b byte) types.NodeID {
	var id ids.ID
	id[0] = b
	return id
}

func TestApportionSeatsSumsToTotal(t *testing.T) {
	weights := map[types.NodeID]float64{
		idOf(1): 1,
		idOf(2): 2,
		idOf(3): 7,
	}
	seats := ApportionSeats(100, weights)

	sum := 0
	for _, s := range seats {
		sum += s
	}
	require.Equal(t, 100, sum)
}

func TestApportionSeatsIsProportional(t *testing.T) {
	weights := map[types.NodeID]float64{
		idOf(1): 10,
		idOf(2): 90,
	}
	seats := ApportionSeats(100, weights)
	require.Greater(t, seats[idOf(2)], seats[idOf(1)])
}

func TestLabelWeightsFavorRareLabels(t *testing.T) {
	labels := map[types.NodeID]string{
		idOf(1): "common",
		idOf(2): "common",
		idOf(3): "common",
		idOf(4): "rare",
	}
	weights := LabelWeights(labels)
	require.Greater(t, weights[idOf(4)], weights[idOf(1)])
}

func TestApportionSeatsHandlesEmptyWeights(t *testing.T) {
	seats := ApportionSeats(100, map[types.NodeID]float64{})
	require.Empty(t, seats)
}
