// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcaster

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/types"
)

type fakeSpiller struct {
	mu      sync.Mutex
	records map[string][]SpillRecord
}

func newFakeSpiller() *fakeSpiller {
	return &fakeSpiller{records: make(map[string][]SpillRecord)}
}

func (f *fakeSpiller) Append(topic string, rec SpillRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[topic] = append(f.records[topic], rec)
	return nil
}

func (f *fakeSpiller) Since(topic string, offset int64) ([]SpillRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SpillRecord
	for _, r := range f.records[topic] {
		if r.Offset > offset {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSpiller) TrimBefore(topic string, before int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []SpillRecord
	for _, r := range f.records[topic] {
		if r.Offset >= before {
			kept = append(kept, r)
		}
	}
	f.records[topic] = kept
	return nil
}

func TestBroadcastDeduplicatesWithinWindow(t *testing.T) {
	b := New("citizen-a", newFakeSpiller(), 16, RetentionPolicy{DedupeWindow: time.Minute}, nil)
	now := time.Unix(0, 0)

	_, err := b.Broadcast(types.TopicNodeFlip, 1, "stim-1", nil, now)
	require.NoError(t, err)

	_, err = b.Broadcast(types.TopicNodeFlip, 2, "stim-1", nil, now.Add(time.Second))
	require.ErrorIs(t, err, types.ErrIdempotentReplay)
}

func TestBroadcastOrdersEventsByOffset(t *testing.T) {
	spiller := newFakeSpiller()
	b := New("citizen-a", spiller, 16, RetentionPolicy{}, nil)
	now := time.Unix(0, 0)

	_, err := b.Broadcast(types.TopicNodeFlip, 1, "", nil, now)
	require.NoError(t, err)
	_, err = b.Broadcast(types.TopicNodeFlip, 2, "", nil, now)
	require.NoError(t, err)

	records, err := b.Replay(types.TopicNodeFlip, -1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Less(t, records[0].Offset, records[1].Offset)
}

func TestBroadcastEvictsOnTimeLimit(t *testing.T) {
	spiller := newFakeSpiller()
	b := New("citizen-a", spiller, 16, RetentionPolicy{TimeLimit: 10 * time.Second}, nil)
	now := time.Unix(0, 0)

	_, err := b.Broadcast(types.TopicNodeFlip, 1, "", nil, now)
	require.NoError(t, err)
	_, err = b.Broadcast(types.TopicNodeFlip, 2, "", nil, now.Add(20*time.Second))
	require.NoError(t, err)

	records, err := b.Replay(types.TopicNodeFlip, -1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, types.FrameID(2), records[0].Event.FrameID)
}

func TestHeartbeatFiresOnlyAfterSilence(t *testing.T) {
	b := New("citizen-a", newFakeSpiller(), 16, RetentionPolicy{}, nil)
	now := time.Unix(0, 0)

	_, err := b.Broadcast(types.TopicHealthLinkPing, 1, "", nil, now)
	require.NoError(t, err)

	_, fired := b.Heartbeat(types.TopicHealthLinkPing, now.Add(5*time.Second), 30*time.Second)
	require.False(t, fired)

	_, fired = b.Heartbeat(types.TopicHealthLinkPing, now.Add(31*time.Second), 30*time.Second)
	require.True(t, fired)
}

func TestCountersTracksTotals(t *testing.T) {
	b := New("citizen-a", newFakeSpiller(), 16, RetentionPolicy{}, nil)
	now := time.Unix(0, 0)

	_, _ = b.Broadcast(types.TopicNodeFlip, 1, "", nil, now)
	_, _ = b.Broadcast(types.TopicNodeFlip, 2, "", nil, now)

	snap := b.Counters(now)
	require.Equal(t, int64(2), snap[types.TopicNodeFlip+".total"])
}

func TestBroadcastReportsSpillFailure(t *testing.T) {
	var alerted bool
	b := New("citizen-a", failingSpiller{}, 16, RetentionPolicy{}, func(_ json.RawMessage) { alerted = true })
	_, err := b.Broadcast(types.TopicNodeFlip, 1, "", nil, time.Unix(0, 0))
	require.Error(t, err)
	require.True(t, alerted)
}

type failingSpiller struct{}

func (failingSpiller) Append(string, SpillRecord) error       { return assertErr }
func (failingSpiller) Since(string, int64) ([]SpillRecord, error) { return nil, nil }
func (failingSpiller) TrimBefore(string, int64) error          { return nil }

var assertErr = &spillError{"spill unavailable"}

type spillError struct{ msg string }

func (e *spillError) Error() string { return e.msg }
