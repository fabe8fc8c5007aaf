// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scheduler

import (
	"container/heap"
	"time"

	"github.com/luxfi/substrate/types"
)

// queuedEnvelope is one pending stimulus, ordered by severity (highest
// first) then arrival order (earliest first) within a severity tier.
type queuedEnvelope struct {
	envelope types.Envelope
	seq      int64
}

type envelopeHeap []queuedEnvelope

func (h envelopeHeap) Len() int { return len(h) }
func (h envelopeHeap) Less(i, j int) bool {
	if h[i].envelope.Severity != h[j].envelope.Severity {
		return h[i].envelope.Severity > h[j].envelope.Severity
	}
	return h[i].seq < h[j].seq
}
func (h envelopeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *envelopeHeap) Push(x any)        { *h = append(*h, x.(queuedEnvelope)) }
func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// StimulusQueue is the scheduler's bounded priority queue: duplicate
// stimulus_ids within the dedupe window are dropped, and the queue itself
// never grows past its configured capacity.
type StimulusQueue struct {
	capacity     int
	dedupeWindow time.Duration

	heap   envelopeHeap
	nextSeq int64
	seen    map[string]time.Time
}

// NewStimulusQueue returns an empty StimulusQueue.
func NewStimulusQueue(capacity int, dedupeWindow time.Duration) *StimulusQueue {
	return &StimulusQueue{
		capacity:     capacity,
		dedupeWindow: dedupeWindow,
		seen:         make(map[string]time.Time),
	}
}

// Enqueue adds env to the queue unless it is a duplicate within the dedupe
// window or the queue is at capacity. accepted is false in either case;
// duplicate distinguishes which one, so callers can surface the right
// membrane.reject reason.
func (q *StimulusQueue) Enqueue(env types.Envelope, now time.Time) (accepted, duplicate bool) {
	q.prune(now)
	if env.StimulusID != "" {
		if seenAt, ok := q.seen[env.StimulusID]; ok && now.Sub(seenAt) < q.dedupeWindow {
			return false, true
		}
		q.seen[env.StimulusID] = now
	}
	if q.heap.Len() >= q.capacity {
		return false, false
	}
	heap.Push(&q.heap, queuedEnvelope{envelope: env, seq: q.nextSeq})
	q.nextSeq++
	return true, false
}

func (q *StimulusQueue) prune(now time.Time) {
	for id, seenAt := range q.seen {
		if now.Sub(seenAt) >= q.dedupeWindow {
			delete(q.seen, id)
		}
	}
}

// DrainUpTo pops up to n highest-priority envelopes in priority order.
func (q *StimulusQueue) DrainUpTo(n int) []types.Envelope {
	out := make([]types.Envelope, 0, n)
	for i := 0; i < n && q.heap.Len() > 0; i++ {
		item := heap.Pop(&q.heap).(queuedEnvelope)
		out = append(out, item.envelope)
	}
	return out
}

// Len reports the current queue depth.
func (q *StimulusQueue) Len() int {
	return q.heap.Len()
}
