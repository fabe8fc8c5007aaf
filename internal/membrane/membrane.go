// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package membrane is the core's narrow view into the external L4 protocol
// registry (schema, topic and signature catalog): a snapshot of registered
// schema names and per-origin signing keys, checked against every incoming
// envelope before it reaches the Stimulus Injector. The catalog itself is
// owned and kept current by an external collaborator; this package only
// enforces the boundary spec.md §6 draws around it.
package membrane

import (
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/luxfi/substrate/types"
)

// Registry holds the validated-envelope boundary state for one process:
// which schema names are currently registered, which origins may sign
// envelopes and with which key, the payload ceiling, and a per-citizen
// rate limiter for the rate_limit rejection reason.
type Registry struct {
	mu sync.RWMutex

	schemas     map[string]bool
	emitterKeys map[string]ed25519.PublicKey

	maxPayloadBytes int
	ratePerSecond   float64
	burst           int
	limiters        map[string]*rate.Limiter
}

// NewRegistry returns a Registry with no schemas or emitter keys registered;
// callers populate it via RegisterSchema/RegisterEmitterKey as the external
// catalog hands off entries. ratePerSecond and burst size the per-citizen
// token-bucket limiter handed to each new citizen seen.
func NewRegistry(maxPayloadBytes int, ratePerSecond float64, burst int) *Registry {
	return &Registry{
		schemas:         make(map[string]bool),
		emitterKeys:     make(map[string]ed25519.PublicKey),
		maxPayloadBytes: maxPayloadBytes,
		ratePerSecond:   ratePerSecond,
		burst:           burst,
		limiters:        make(map[string]*rate.Limiter),
	}
}

// RegisterSchema marks a type name as accepted.
func (r *Registry) RegisterSchema(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[name] = true
}

// RegisterEmitterKey authorizes origin to sign envelopes with pub.
func (r *Registry) RegisterEmitterKey(origin string, pub ed25519.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitterKeys[origin] = pub
}

// Validate checks env against every rejection reason spec.md §6 lists
// except idempotent_replay, which only the scheduler's dedupe window can
// detect (a duplicate envelope is, by definition, individually valid).
// payloadSize is the caller's measure of the envelope's wire size.
func (r *Registry) Validate(env types.Envelope, payloadSize int, now time.Time) (types.RejectReason, bool) {
	r.mu.RLock()
	registered := r.schemas[env.Type]
	pub, hasKey := r.emitterKeys[env.Origin]
	r.mu.RUnlock()

	if !registered {
		return types.RejectUnknownSchema, false
	}
	if r.maxPayloadBytes > 0 && payloadSize > r.maxPayloadBytes {
		return types.RejectPayloadExceedsLimit, false
	}
	if env.Sig != "" {
		if !hasKey {
			return types.RejectUnauthorizedEmitter, false
		}
		sig, err := base64.StdEncoding.DecodeString(env.Sig)
		if err != nil || !ed25519.Verify(pub, canonicalBytes(env), sig) {
			return types.RejectInvalidSignature, false
		}
	}
	if !r.allow(env.CitizenID, now) {
		return types.RejectRateLimit, false
	}
	return "", true
}

// canonicalBytes is the signed payload: the fields an emitter commits to,
// excluding the signature itself.
func canonicalBytes(env types.Envelope) []byte {
	buf := make([]byte, 0, len(env.StimulusID)+len(env.CitizenID)+len(env.Type)+len(env.Text))
	buf = append(buf, env.Type...)
	buf = append(buf, env.StimulusID...)
	buf = append(buf, env.CitizenID...)
	buf = append(buf, env.Text...)
	return buf
}

// allow enforces one golang.org/x/time/rate.Limiter per citizen, lazily
// created on first sight. AllowN takes the explicit clock reading rather
// than rate.Limiter's own Allow/wall-clock path, so the limiter advances on
// the scheduler's clock instead of real time.
func (r *Registry) allow(citizenID string, now time.Time) bool {
	if r.ratePerSecond <= 0 {
		return true
	}
	r.mu.Lock()
	lim, ok := r.limiters[citizenID]
	if !ok {
		burst := r.burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(r.ratePerSecond), burst)
		r.limiters[citizenID] = lim
	}
	r.mu.Unlock()
	return lim.AllowN(now, 1)
}
