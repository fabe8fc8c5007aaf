// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broadcaster implements the Event Broadcaster: at-least-once,
// per-(citizen_id, topic)-ordered delivery over an in-memory ring backed by
// a durable spill, with per-topic retention, heartbeats, and self-reported
// health.
package broadcaster

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/luxfi/substrate/metrics"
	"github.com/luxfi/substrate/types"
)

// SpillRecord is one durably-spilled event at a monotone per-topic offset.
type SpillRecord struct {
	Offset int64
	Event  types.Event
}

// Spiller is the durable side of the ring: every enqueued event is appended
// here before being considered delivered, so a consumer that reconnects
// after a gap can replay from any acknowledged offset forward.
type Spiller interface {
	Append(topic string, rec SpillRecord) error
	Since(topic string, offset int64) ([]SpillRecord, error)
	TrimBefore(topic string, offset int64) error
}

// RetentionPolicy bounds a topic's in-memory ring and spill. SizeLimit is a
// count of entries, not a byte size; TimeLimit drops entries older than the
// newest event by more than that duration. Whichever bound is reached first
// evicts the oldest entries, whether or not they have been acknowledged.
// DedupeWindow evicts nothing: it is how long a stimulus_id is remembered
// for duplicate suppression.
type RetentionPolicy struct {
	DedupeWindow time.Duration
	SizeLimit    int
	TimeLimit    time.Duration
}

type topicState struct {
	nextOffset  int64
	ackedOffset int64
	ring        []SpillRecord
	seenStim    map[string]time.Time
	lastEventAt time.Time
	lastFrameID types.FrameID
	total       int64
	windowHits  map[int64]int64 // unix-second bucket -> count, last 60 buckets kept
}

func newTopicState() *topicState {
	return &topicState{seenStim: make(map[string]time.Time), windowHits: make(map[int64]int64)}
}

// Broadcaster owns per-topic state for one citizen.
type Broadcaster struct {
	mu        sync.Mutex
	citizenID string
	spiller   Spiller
	ringCap   int
	retention RetentionPolicy
	topics    map[string]*topicState
	alerts    func(payload json.RawMessage) // self-reported health sink
}

// New returns a Broadcaster. alerts is called whenever the broadcaster needs
// to self-report a failure; it runs while the broadcaster's own lock is
// held, so it must not call back into this Broadcaster.
func New(citizenID string, spiller Spiller, ringCap int, retention RetentionPolicy, alerts func(json.RawMessage)) *Broadcaster {
	if ringCap <= 0 {
		ringCap = 1024
	}
	if alerts == nil {
		alerts = func(json.RawMessage) {}
	}
	return &Broadcaster{
		citizenID: citizenID,
		spiller:   spiller,
		ringCap:   ringCap,
		retention: retention,
		topics:    make(map[string]*topicState),
		alerts:    alerts,
	}
}

func (b *Broadcaster) topicFor(topic string) *topicState {
	ts, ok := b.topics[topic]
	if !ok {
		ts = newTopicState()
		b.topics[topic] = ts
	}
	return ts
}

// Broadcast enqueues one event into the ring and durable spill. stimulusID
// may be empty for events with no natural dedupe key (e.g. internal
// telemetry); non-empty stimulus IDs are deduplicated within the topic's
// retention dedupe window.
func (b *Broadcaster) Broadcast(topic string, frameID types.FrameID, stimulusID string, payload json.RawMessage, now time.Time) (types.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := b.topicFor(topic)
	if stimulusID != "" {
		if seenAt, ok := ts.seenStim[stimulusID]; ok && now.Sub(seenAt) < b.retention.DedupeWindow {
			return types.Event{}, types.ErrIdempotentReplay
		}
		ts.seenStim[stimulusID] = now
	}

	ev := types.Event{
		V:         "1",
		Type:      topic,
		FrameID:   frameID,
		CitizenID: b.citizenID,
		TMs:       now.UnixMilli(),
		Topic:     topic,
		Payload:   payload,
	}
	rec := SpillRecord{Offset: ts.nextOffset, Event: ev}
	ts.nextOffset++

	if err := b.spiller.Append(topic, rec); err != nil {
		b.reportFailure("spill_append_failed", topic, err)
		return types.Event{}, err
	}

	ts.ring = append(ts.ring, rec)
	if len(ts.ring) > b.ringCap {
		overflow := len(ts.ring) - b.ringCap
		ts.ring = ts.ring[overflow:]
		if overflow > 0 {
			b.reportFailure("spill_overflow", topic, nil)
		}
	}

	ts.lastEventAt = now
	ts.lastFrameID = frameID
	ts.total++
	ts.windowHits[now.Unix()]++
	pruneWindow(ts.windowHits, now)

	b.evict(topic, ts)
	return ev, nil
}

// evict drops spilled entries once any retention bound is exceeded, logging
// a counter via the alert sink rather than failing the broadcast itself.
func (b *Broadcaster) evict(topic string, ts *topicState) {
	if b.retention.TimeLimit <= 0 && b.retention.SizeLimit <= 0 {
		return
	}
	if b.retention.SizeLimit > 0 && len(ts.ring) > b.retention.SizeLimit {
		trimTo := ts.ring[len(ts.ring)-b.retention.SizeLimit].Offset
		if err := b.spiller.TrimBefore(topic, trimTo); err != nil {
			b.reportFailure("retention_trim_failed", topic, err)
			return
		}
		ts.ring = ts.ring[len(ts.ring)-b.retention.SizeLimit:]
	}
	if b.retention.TimeLimit > 0 && len(ts.ring) > 0 {
		cutoff := ts.lastEventAt.Add(-b.retention.TimeLimit).UnixMilli()
		keepFrom := 0
		for keepFrom < len(ts.ring) && ts.ring[keepFrom].Event.TMs < cutoff {
			keepFrom++
		}
		if keepFrom == 0 {
			return
		}
		if keepFrom >= len(ts.ring) {
			keepFrom = len(ts.ring) - 1
		}
		trimTo := ts.ring[keepFrom].Offset
		if err := b.spiller.TrimBefore(topic, trimTo); err != nil {
			b.reportFailure("retention_trim_failed", topic, err)
			return
		}
		ts.ring = ts.ring[keepFrom:]
	}
}

func pruneWindow(hits map[int64]int64, now time.Time) {
	cutoff := now.Add(-60 * time.Second).Unix()
	for bucket := range hits {
		if bucket < cutoff {
			delete(hits, bucket)
		}
	}
}

func (b *Broadcaster) reportFailure(reason, topic string, err error) {
	payload := map[string]any{"reason": reason, "topic": topic}
	if err != nil {
		payload["error"] = err.Error()
	}
	encoded, _ := json.Marshal(payload)
	b.alerts(encoded)
}

// Heartbeat returns a heartbeat event for topic if it has been silent for at
// least interval, carrying the topic's last frame_id so a downstream
// consumer never mistakes silence for a dead producer.
func (b *Broadcaster) Heartbeat(topic string, now time.Time, interval time.Duration) (types.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := b.topicFor(topic)
	if !ts.lastEventAt.IsZero() && now.Sub(ts.lastEventAt) < interval {
		return types.Event{}, false
	}
	payload, _ := json.Marshal(map[string]any{"last_frame_id": ts.lastFrameID})
	ts.lastEventAt = now
	return types.Event{
		V:         "1",
		Type:      topic,
		FrameID:   ts.lastFrameID,
		CitizenID: b.citizenID,
		TMs:       now.UnixMilli(),
		Topic:     topic,
		Payload:   payload,
	}, true
}

// Replay returns every spilled event for topic since offset (exclusive), in
// order, for a reconnecting subscriber.
func (b *Broadcaster) Replay(topic string, sinceOffset int64) ([]SpillRecord, error) {
	return b.spiller.Since(topic, sinceOffset)
}

// Ack advances the recorded acknowledged offset for topic. Retention
// eviction does not consult it; entries are trimmed by SizeLimit and
// TimeLimit alone.
func (b *Broadcaster) Ack(topic string, offset int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts := b.topicFor(topic)
	if offset > ts.ackedOffset {
		ts.ackedOffset = offset
	}
}

// Counters returns the per-topic total and 60-second sliding window counts.
func (b *Broadcaster) Counters(now time.Time) metrics.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := make(metrics.Snapshot, len(b.topics)*2)
	for topic, ts := range b.topics {
		pruneWindow(ts.windowHits, now)
		var windowTotal int64
		for _, v := range ts.windowHits {
			windowTotal += v
		}
		snap[topic+".total"] = ts.total
		snap[topic+".window_60s"] = windowTotal
	}
	return snap
}
