// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/json"
)

// Envelope is the core's input unit: a validated stimulus from an external
// producer (CLI, HTTP bridge, log scraper, self-observation).
type Envelope struct {
	V          string `json:"v"`
	Type       string `json:"type"` // registered schema name
	StimulusID string `json:"stimulus_id"`
	CitizenID  string `json:"citizen_id"`
	TMs        int64  `json:"t_ms"`
	Origin     string `json:"origin"`
	SourceType string `json:"source_type"`
	Text       string `json:"text"`

	Embedding []float32 `json:"embedding,omitempty"`

	Severity float64         `json:"severity"`
	Metadata json.RawMessage `json:"metadata,omitempty"`

	Sig            string `json:"sig,omitempty"`
	AttestationRef string `json:"attestation_ref,omitempty"`
}

// RejectReason enumerates why the membrane refused an envelope.
type RejectReason string

const (
	RejectUnknownSchema      RejectReason = "unknown_schema"
	RejectPayloadExceedsLimit RejectReason = "payload_exceeds_limit"
	RejectUnauthorizedEmitter RejectReason = "unauthorized_emitter"
	RejectInvalidSignature   RejectReason = "invalid_signature"
	RejectRateLimit          RejectReason = "rate_limit"
	RejectIdempotentReplay   RejectReason = "idempotent_replay"
)

// Event is the core's output unit, delivered by the broadcaster.
type Event struct {
	V         string          `json:"v"`
	Type      string          `json:"type"`
	FrameID   FrameID         `json:"frame_id"`
	CitizenID string          `json:"citizen_id"`
	TMs       int64           `json:"t_ms"`
	Topic     string          `json:"-"` // routing key, not wire-serialized twice
	Payload   json.RawMessage `json:"payload"`
}

// Topic name constants, per spec.md §6.
const (
	TopicTickFrame          = "tick_frame_v1"
	TopicNodeFlip           = "node.flip"
	TopicWMEmit             = "wm.emit"
	TopicLinkFlowSummary    = "link.flow.summary"
	TopicSubEntitySpawn     = "subentity.spawn"
	TopicSubEntitySplit     = "subentity.split"
	TopicSubEntityMerged    = "subentity.merged"
	TopicWeightsUpdated     = "weights.updated"
	TopicStimulusInjection  = "stimulus.injection.debug"
	TopicHealthLinkPing     = "health.link.ping"
	TopicHealthLinkPong     = "health.link.pong"
	TopicHealthLinkSnapshot = "health.link.snapshot"
	TopicHealthLinkAlert    = "health.link.alert"
	TopicComplianceSnapshot = "health.compliance.snapshot"
	TopicComplianceAlert    = "health.compliance.alert"
	TopicDashboardState     = "dashboard.state.emit"
	TopicMembraneReject     = "membrane.reject"
)
