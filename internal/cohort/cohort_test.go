// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cohort

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/types"
)

func TestFirstObservationIsMedian(t *testing.T) {
	s := New()
	k := Key{TypeName: "concept", Scope: types.ScopePersonal}
	z := s.ZScore(k, 5.0)
	require.InDelta(t, 0.0, z, 1e-9)
}

func TestZScoreOrdersWithCohort(t *testing.T) {
	s := New()
	k := Key{TypeName: "concept", Scope: types.ScopePersonal}
	for _, v := range []float64{1, 2, 3, 4, 5, 6, 7, 8, 9} {
		s.Observe(k, v)
	}

	zLow := s.ZScore(k, 0.5)
	zMid := s.ZScore(k, 5)
	zHigh := s.ZScore(k, 9.5)

	require.Less(t, zLow, zMid)
	require.Less(t, zMid, zHigh)
}

func TestCohortsAreIndependent(t *testing.T) {
	s := New()
	a := Key{TypeName: "concept", Scope: types.ScopePersonal}
	b := Key{TypeName: "concept", Scope: types.ScopeEcosystem}

	for i := 0; i < 100; i++ {
		s.Observe(a, 1000) // a's cohort is all huge values
	}
	// b has no samples yet; a value of 5 in b should be the median (z=0),
	// not influenced by a's huge samples.
	require.InDelta(t, 0.0, s.ZScore(b, 5), 1e-9)
}
