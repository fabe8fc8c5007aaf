// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package workingmemory

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/set"
)

func idOf(b byte) ids.ID {
	var id ids.ID
	id[0] = b
	return id
}

func TestSelectRespectsTokenBudget(t *testing.T) {
	s := New(cohort.New())
	candidates := []Candidate{
		{ID: idOf(1), Value: 10, Tokens: 5, Members: set.Of(idOf(10))},
		{ID: idOf(2), Value: 10, Tokens: 5, Members: set.Of(idOf(11))},
		{ID: idOf(3), Value: 10, Tokens: 5, Members: set.Of(idOf(12))},
	}
	selected := s.Select(candidates, 10)
	require.LessOrEqual(t, len(selected), 2)
}

func TestSelectPenalizesOverlappingMembers(t *testing.T) {
	s := New(cohort.New())
	candidates := []Candidate{
		{ID: idOf(1), Value: 10, Tokens: 1, Members: set.Of(idOf(10), idOf(11))},
		{ID: idOf(2), Value: 10, Tokens: 1, Members: set.Of(idOf(11), idOf(12))},
	}
	selected := s.Select(candidates, 100)
	require.Len(t, selected, 2)
	require.Greater(t, selected[0].Score, selected[1].Score)
}

func TestSelectSkipsZeroTokenCandidates(t *testing.T) {
	s := New(cohort.New())
	candidates := []Candidate{{ID: idOf(1), Value: 10, Tokens: 0, Members: set.Of(idOf(10))}}
	selected := s.Select(candidates, 100)
	require.Empty(t, selected)
}
