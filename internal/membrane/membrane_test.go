// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package membrane

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/types"
)

func TestValidateRejectsUnregisteredSchema(t *testing.T) {
	r := NewRegistry(1024, 0, 0)
	_, ok := r.Validate(types.Envelope{Type: "unknown_thing"}, 10, time.Unix(0, 0))
	require.False(t, ok)
}

func TestValidateRejectsOversizedPayload(t *testing.T) {
	r := NewRegistry(8, 0, 0)
	r.RegisterSchema("user_message")
	reason, ok := r.Validate(types.Envelope{Type: "user_message"}, 9, time.Unix(0, 0))
	require.False(t, ok)
	require.Equal(t, types.RejectPayloadExceedsLimit, reason)
}

func TestValidateRejectsUnauthorizedEmitter(t *testing.T) {
	r := NewRegistry(1024, 0, 0)
	r.RegisterSchema("user_message")
	reason, ok := r.Validate(types.Envelope{Type: "user_message", Origin: "cli", Sig: "abc"}, 3, time.Unix(0, 0))
	require.False(t, ok)
	require.Equal(t, types.RejectUnauthorizedEmitter, reason)
}

func TestValidateAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	r := NewRegistry(1024, 0, 0)
	r.RegisterSchema("user_message")
	r.RegisterEmitterKey("cli", pub)

	env := types.Envelope{Type: "user_message", Origin: "cli", StimulusID: "s1", CitizenID: "c1", Text: "hello"}
	sig := ed25519.Sign(priv, canonicalBytes(env))
	env.Sig = base64.StdEncoding.EncodeToString(sig)

	_, ok := r.Validate(env, len(env.Text), time.Unix(0, 0))
	require.True(t, ok)
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	r := NewRegistry(1024, 0, 0)
	r.RegisterSchema("user_message")
	r.RegisterEmitterKey("cli", pub)

	env := types.Envelope{Type: "user_message", Origin: "cli", StimulusID: "s1", CitizenID: "c1", Text: "hello"}
	sig := ed25519.Sign(priv, canonicalBytes(env))
	env.Sig = base64.StdEncoding.EncodeToString(sig)
	env.Text = "tampered"

	reason, ok := r.Validate(env, len(env.Text), time.Unix(0, 0))
	require.False(t, ok)
	require.Equal(t, types.RejectInvalidSignature, reason)
}

func TestValidateEnforcesRateLimit(t *testing.T) {
	r := NewRegistry(1024, 1, 1)
	r.RegisterSchema("user_message")
	now := time.Unix(0, 0)

	_, ok := r.Validate(types.Envelope{Type: "user_message", CitizenID: "c1"}, 1, now)
	require.True(t, ok)

	reason, ok := r.Validate(types.Envelope{Type: "user_message", CitizenID: "c1"}, 1, now)
	require.False(t, ok)
	require.Equal(t, types.RejectRateLimit, reason)
}

func TestValidateRateLimitRefillsOverTime(t *testing.T) {
	r := NewRegistry(1024, 1, 1)
	r.RegisterSchema("user_message")
	now := time.Unix(0, 0)

	_, _ = r.Validate(types.Envelope{Type: "user_message", CitizenID: "c1"}, 1, now)
	_, ok := r.Validate(types.Envelope{Type: "user_message", CitizenID: "c1"}, 1, now.Add(2*time.Second))
	require.True(t, ok)
}
