// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package learner

import (
	"bytes"
	"math"
	"sort"

	"github.com/luxfi/substrate/types"
)

// ApportionSeats allocates totalSeats discrete reinforcement seats across
// nodes in proportion to weight, using Hamilton's largest-remainder method:
// every node first gets floor(quota) seats, then the seats left over by
// rounding go one each to the nodes with the largest fractional remainder.
// This is the same tally-then-settle shape as a weighted quorum vote, just
// settling seat counts instead of a pass/fail threshold.
func ApportionSeats(totalSeats int, weights map[types.NodeID]float64) map[types.NodeID]int {
	seats := make(map[types.NodeID]int, len(weights))
	if totalSeats <= 0 || len(weights) == 0 {
		return seats
	}

	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return seats
	}

	type remainder struct {
		id  types.NodeID
		rem float64
	}
	remainders := make([]remainder, 0, len(weights))

	assigned := 0
	for id, w := range weights {
		if w <= 0 {
			continue
		}
		quota := float64(totalSeats) * w / total
		whole := math.Floor(quota)
		seats[id] = int(whole)
		assigned += int(whole)
		remainders = append(remainders, remainder{id: id, rem: quota - whole})
	}

	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].rem != remainders[j].rem {
			return remainders[i].rem > remainders[j].rem
		}
		return bytes.Compare(remainders[i].id[:], remainders[j].id[:]) < 0
	})

	left := totalSeats - assigned
	for i := 0; i < left && i < len(remainders); i++ {
		seats[remainders[i].id]++
	}
	return seats
}

// LabelWeights derives the per-node apportionment weight from label rarity:
// w_l = 1/p_l, so that a node carrying a rarer label pulls a
// disproportionate share of the apportionment pool and repeated near-ties
// among common labels do not starve it.
func LabelWeights(nodeLabels map[types.NodeID]string) map[types.NodeID]float64 {
	counts := make(map[string]int, len(nodeLabels))
	for _, label := range nodeLabels {
		counts[label]++
	}
	total := float64(len(nodeLabels))

	weights := make(map[types.NodeID]float64, len(nodeLabels))
	for id, label := range nodeLabels {
		p := float64(counts[label]) / total
		if p <= 0 {
			continue
		}
		weights[id] = 1 / p
	}
	return weights
}
