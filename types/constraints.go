// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "golang.org/x/exp/constraints"

// Number spans the numeric types the energy and weight math is generic over.
type Number interface {
	constraints.Integer | constraints.Float
}

// FrameID is the scheduler's per-citizen, strictly monotone tick counter.
type FrameID uint64

// Scope is the universal coalition scale a node or sub-entity lives at.
type Scope string

const (
	ScopePersonal       Scope = "personal"
	ScopeOrganizational Scope = "organizational"
	ScopeEcosystem      Scope = "ecosystem"
	ScopeProtocol       Scope = "protocol"
)
