// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package workingmemory implements the Working Memory Selector: a greedy
// knapsack over sub-entities (or nodes, when the citizen is dormant) with a
// submodular diversity penalty, subject to a caller-supplied token budget.
package workingmemory

import (
	"math"
	"sort"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/types"
	"github.com/luxfi/substrate/set"
)

// Candidate is one selectable unit: a sub-entity or, in the dormant
// fallback, a node standing in for one. Members identifies the node set
// backing this candidate, used for the Jaccard diversity penalty.
type Candidate struct {
	ID      types.SubEntityID
	Value   float64 // E_e (or E-θ for the node fallback)
	Tokens  float64
	Members set.Set[types.NodeID]
}

// Selection is one chosen candidate plus the score it was selected with.
type Selection struct {
	ID    types.SubEntityID
	Score float64
}

var presenceKey = cohort.Key{TypeName: "wm_presence", Scope: types.ScopeProtocol}

// Selector runs the greedy knapsack selection.
type Selector struct {
	cohorts *cohort.Stats
}

// New returns a Selector backed by cohorts.
func New(cohorts *cohort.Stats) *Selector {
	return &Selector{cohorts: cohorts}
}

// Select picks candidates greedily by score/token ratio until tokenBudget is
// exhausted, applying a diversity penalty that shrinks the marginal value of
// any candidate whose member set substantially overlaps an already-selected
// one.
func (s *Selector) Select(candidates []Candidate, tokenBudget float64) []Selection {
	type scored struct {
		c     Candidate
		score float64
	}
	pool := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.Tokens <= 0 {
			continue
		}
		z := s.cohorts.ObserveAndZScore(presenceKey, c.Value/c.Tokens)
		pool = append(pool, scored{c: c, score: (c.Value / c.Tokens) * math.Exp(z)})
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].score > pool[j].score })

	var selected []Selection
	var selectedMembers []set.Set[types.NodeID]
	remaining := tokenBudget

	for _, p := range pool {
		if p.c.Tokens > remaining {
			continue
		}
		penalty := diversityPenalty(p.c.Members, selectedMembers)
		marginal := p.score * penalty
		if marginal <= 0 {
			continue
		}
		selected = append(selected, Selection{ID: p.c.ID, Score: marginal})
		selectedMembers = append(selectedMembers, p.c.Members)
		remaining -= p.c.Tokens
	}
	return selected
}

// diversityPenalty returns a multiplier in [0, 1] that shrinks toward 0 as
// a candidate's member set overlaps more with any already-selected one,
// measured by Jaccard similarity. A brand-new, fully novel candidate keeps
// its full score.
func diversityPenalty(members set.Set[types.NodeID], selected []set.Set[types.NodeID]) float64 {
	if len(selected) == 0 || members.Len() == 0 {
		return 1
	}
	var maxJaccard float64
	for _, other := range selected {
		union := members.Union(other).Len()
		if union == 0 {
			continue
		}
		j := float64(members.Intersection(other).Len()) / float64(union)
		if j > maxJaccard {
			maxJaccard = j
		}
	}
	return 1 - maxJaccard
}
