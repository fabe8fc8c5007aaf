// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "math"

// Link is a directed, typed edge between two nodes.
type Link struct {
	ID       LinkID `json:"link_id"`
	Source   NodeID `json:"source"`
	Target   NodeID `json:"target"`
	TypeName string `json:"type_name"` // e.g. ENABLES, REQUIRES, EVIDENCED_BY, REFUTES

	Weight    float64 `json:"weight"` // linear, derived
	LogWeight float64 `json:"log_weight"`

	EMAFlow float64 `json:"ema_flow"`

	PrecedenceForward  float64 `json:"precedence_forward"`
	PrecedenceBackward float64 `json:"precedence_backward"`

	LastUpdateTimestamp int64 `json:"last_update_timestamp"` // unix millis

	Bitemporal
}

// SyncWeight recomputes the linear Weight from LogWeight.
func (l *Link) SyncWeight() {
	l.Weight = math.Exp(l.LogWeight)
}

// RelatesTo is a coalition-scale edge between two sub-entities, carrying the
// EMAs that drive multi-scale traversal.
type RelatesTo struct {
	Source SubEntityID `json:"source"`
	Target SubEntityID `json:"target"`

	PrecedenceEMA float64 `json:"precedence_ema"`
	FlowEMA       float64 `json:"flow_ema"`
	PhiMaxEMA     float64 `json:"phi_max_ema"`
}
