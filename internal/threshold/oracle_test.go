// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package threshold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/types"
)

func TestThresholdIsAlwaysPositive(t *testing.T) {
	o := New(cohort.New(), time.Second)
	k := cohort.Key{TypeName: "concept", Scope: types.ScopePersonal}
	now := time.Unix(0, 0)

	require.Greater(t, o.Threshold(k, now), 0.0)
	require.Greater(t, o.Observe(k, 0, now), 0.0)
}

func TestThresholdTracksCohortEnergyLevel(t *testing.T) {
	o := New(cohort.New(), time.Second)
	lowCohort := cohort.Key{TypeName: "concept", Scope: types.ScopePersonal}
	highCohort := cohort.Key{TypeName: "concept", Scope: types.ScopeEcosystem}

	now := time.Unix(0, 0)
	for i := 0; i < 50; i++ {
		now = now.Add(time.Second)
		o.Observe(lowCohort, 1.0, now)
		o.Observe(highCohort, 100.0, now)
	}

	require.Greater(t, o.Threshold(highCohort, now), o.Threshold(lowCohort, now))
}

func TestThresholdIsNotAFixedConstantAcrossCohorts(t *testing.T) {
	o := New(cohort.New(), time.Second)
	a := cohort.Key{TypeName: "belief", Scope: types.ScopePersonal}
	b := cohort.Key{TypeName: "goal", Scope: types.ScopePersonal}

	now := time.Unix(0, 0)
	o.Observe(a, 5, now)
	o.Observe(b, 500, now)

	require.NotEqual(t, o.Threshold(a, now), o.Threshold(b, now))
}
