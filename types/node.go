// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math"
	"time"

	"github.com/luxfi/ids"
)

// NodeID, LinkID and SubEntityID reuse the teacher's stable identity type
// rather than inventing a parallel one.
type (
	NodeID      = ids.ID
	LinkID      = ids.ID
	SubEntityID = ids.ID
)

// Bitemporal holds the two time axes every node and link carries: when the
// fact became true in the world, and when the substrate learned about it.
// ValidAt/CreatedAt are set once; InvalidAt/ExpiredAt transition exactly
// once from zero to non-zero, on supersession.
type Bitemporal struct {
	ValidAt   time.Time `json:"valid_at"`
	InvalidAt time.Time `json:"invalid_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiredAt time.Time `json:"expired_at,omitempty"`
}

// Supersede sets InvalidAt/ExpiredAt if unset. Re-superseding is a no-op,
// matching the "transitions once" invariant.
func (b *Bitemporal) Supersede(at time.Time) {
	if b.InvalidAt.IsZero() {
		b.InvalidAt = at
	}
	if b.ExpiredAt.IsZero() {
		b.ExpiredAt = at
	}
}

// Membership is one MEMBER_OF edge from a node to a sub-entity.
type Membership struct {
	SubEntity     SubEntityID `json:"sub_entity"`
	Weight        float64     `json:"weight"` // in [0,1]
	PrimaryEntity bool        `json:"primary_entity"`
}

// Node is a vertex in a citizen's graph. Runtime fields (energy, threshold)
// live in the per-entity maps because a node's energy and threshold are
// scoped per sub-entity/arena context, not a single scalar.
type Node struct {
	ID       NodeID `json:"node_id"`
	Name     string `json:"name"`
	TypeName string `json:"type_name"`

	// Embedding is a unit-norm vector, or nil if derived from attribution.
	Embedding []float32 `json:"embedding,omitempty"`

	// Energy and Threshold are keyed by entity_id ("" is the node's own
	// atomic scale; other keys are sub-entity scales the node has a stake
	// in). Both are always non-negative.
	Energy    map[string]float32 `json:"energy"`
	Threshold map[string]float64 `json:"threshold"`

	LogWeight float64 `json:"log_weight"`

	EMATraceSeats       float64 `json:"ema_trace_seats"`
	EMAFormationQuality float64 `json:"ema_formation_quality"`
	EMAWMPresence       float64 `json:"ema_wm_presence"`

	LastUpdateTimestamp time.Time `json:"last_update_timestamp"`
	LastActivationAt    time.Time `json:"last_activation_at"`

	// HalfLife is the node's decay time constant. When it is zero the
	// scheduler uses diffusion.SeedHalfLife(); nothing in this repository
	// updates it from inter-activation intervals.
	HalfLife time.Duration `json:"half_life"`

	Memberships []Membership `json:"memberships"`

	Bitemporal
}

// Weight is the linear projection of LogWeight.
func (n *Node) Weight() float64 {
	return expClamped(n.LogWeight)
}

// EnergyAt returns the node's energy at the given entity scale ("" = atomic).
func (n *Node) EnergyAt(entity string) float32 {
	if n.Energy == nil {
		return 0
	}
	return n.Energy[entity]
}

// ThresholdAt returns the node's threshold at the given entity scale.
func (n *Node) ThresholdAt(entity string) float64 {
	if n.Threshold == nil {
		return 0
	}
	return n.Threshold[entity]
}

// PrimaryMembership returns the membership flagged as primary, if any.
func (n *Node) PrimaryMembership() (Membership, bool) {
	for _, m := range n.Memberships {
		if m.PrimaryEntity {
			return m, true
		}
	}
	return Membership{}, false
}

func expClamped(x float64) float64 {
	// log_weight is unclamped; guard the derived linear projection against
	// overflow so callers never see +Inf from a runaway learning update.
	const max = 700 // exp(700) is near the float64 ceiling
	if x > max {
		x = max
	}
	if x < -max {
		x = -max
	}
	return math.Exp(x)
}
