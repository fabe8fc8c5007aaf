// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(3, time.Second)
	now := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		require.True(t, b.Allow(now))
		b.RecordFailure(now)
	}
	require.True(t, b.Open())
	require.False(t, b.Allow(now))
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	b := New(1, time.Second)
	now := time.Unix(0, 0)
	b.Allow(now)
	b.RecordFailure(now)
	require.True(t, b.Open())

	later := now.Add(2 * time.Second)
	require.True(t, b.Allow(later))
}

func TestRunRejectsWhenOpen(t *testing.T) {
	b := New(1, time.Hour)
	now := time.Unix(0, 0)
	err := b.Run(now, func() error { return errors.New("boom") })
	require.Error(t, err)

	err = b.Run(now, func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestRunResetsOnSuccess(t *testing.T) {
	b := New(2, time.Hour)
	now := time.Unix(0, 0)
	require.Error(t, b.Run(now, func() error { return errors.New("boom") }))
	require.NoError(t, b.Run(now, func() error { return nil }))
	require.False(t, b.Open())
}
