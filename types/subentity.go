// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// SubEntity is a coalition of nodes forming a higher-level attractor.
type SubEntity struct {
	ID          SubEntityID `json:"subentity_id"`
	Scope       Scope       `json:"scope"`
	RoleOrTopic string      `json:"role_or_topic"`

	Members     []NodeID `json:"members"`
	MemberCount int      `json:"member_count"`

	// EnergyCache/ThresholdCache are the differentially-maintained
	// aggregates described in spec.md §4.4; they are recomputed from member
	// deltas, never fully re-summed on the hot path.
	EnergyCache    float64 `json:"energy_cache"`
	ThresholdCache float64 `json:"threshold_cache"`

	Relations []RelatesTo `json:"relations"`

	// StableSinceFrame tracks how long the member set has been unchanged,
	// feeding the crystallize/split/merge lifecycle.
	StableSinceFrame FrameID `json:"stable_since_frame"`
	Active           bool    `json:"active"`
}
