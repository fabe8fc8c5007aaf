// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scheduler

import (
	stdctx "context"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/config"
	cctx "github.com/luxfi/substrate/context"
	"github.com/luxfi/substrate/internal/broadcaster"
	"github.com/luxfi/substrate/internal/retriever"
	"github.com/luxfi/substrate/log"
	"github.com/luxfi/substrate/metrics"
	"github.com/luxfi/substrate/types"
)

type memSpiller struct {
	mu      sync.Mutex
	records map[string][]broadcaster.SpillRecord
}

func newMemSpiller() *memSpiller {
	return &memSpiller{records: make(map[string][]broadcaster.SpillRecord)}
}

func (m *memSpiller) Append(topic string, rec broadcaster.SpillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[topic] = append(m.records[topic], rec)
	return nil
}

func (m *memSpiller) Since(topic string, offset int64) ([]broadcaster.SpillRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []broadcaster.SpillRecord
	for _, r := range m.records[topic] {
		if r.Offset > offset {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSpiller) TrimBefore(topic string, before int64) error {
	return nil
}

type stubIndex struct {
	hits []retriever.Hit
}

func (s stubIndex) Search(_ stdctx.Context, _ []float32, _ int) ([]retriever.Hit, error) {
	return s.hits, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCitizen(t *testing.T, index retriever.Index) (*Citizen, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(0, 0)}
	rootCtx := cctx.New("citizen-test", log.NewNoOpLogger(), metrics.NewRegistry(nil)).WithClock(clock)
	cfg := config.Default()
	cfg.CitizenID = "citizen-test"
	cfg.TickInterval = time.Millisecond
	cfg.BreakerCooldown = time.Millisecond

	bus := broadcaster.New("citizen-test", newMemSpiller(), 256, broadcaster.RetentionPolicy{}, nil)
	c, err := New(rootCtx, cfg, index, nil, bus)
	require.NoError(t, err)
	return c, clock
}

func seedNode(c *Citizen, typeName string, energy float32, threshold float64) *types.Node {
	n := &types.Node{
		ID:        ids.GenerateTestID(),
		TypeName:  typeName,
		Energy:    map[string]float32{"": energy},
		Threshold: map[string]float64{"": threshold},
	}
	c.Arena().UpsertNode(n)
	return n
}

func TestTickWithNoStimuliIsANoOp(t *testing.T) {
	c, _ := newTestCitizen(t, nil)
	report := c.Tick(stdctx.Background())
	require.Equal(t, types.FrameID(1), report.FrameID)
	require.Equal(t, 0, report.Injected)
	require.True(t, report.ConservationOK)
}

func TestTickAdvancesFrameIDMonotonically(t *testing.T) {
	c, _ := newTestCitizen(t, nil)
	r1 := c.Tick(stdctx.Background())
	r2 := c.Tick(stdctx.Background())
	require.Equal(t, types.FrameID(1), r1.FrameID)
	require.Equal(t, types.FrameID(2), r2.FrameID)
}

func TestTickWithoutTraceEmitsNoWeightUpdate(t *testing.T) {
	c, _ := newTestCitizen(t, nil)
	seedNode(c, "belief", 5, 1)

	result, err := c.learningPhase(time.Unix(0, 0), nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.UpdatedCount)
}

func TestIngestTraceDrivesLearningPhase(t *testing.T) {
	c, _ := newTestCitizen(t, nil)
	n := seedNode(c, "belief", 5, 1)

	c.IngestTrace(TraceBatch{
		Mass: map[types.NodeID]float64{n.ID: 10},
		Formations: []TraceFormation{
			{NodeID: n.ID, Completeness: 0.8, Evidence: 0.9, Novelty: 0.7},
		},
	})

	result, err := c.learningPhase(time.Unix(0, 0), map[types.NodeID]float64{n.ID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, result.UpdatedCount)
}

func TestInjectStimulusEnqueuesForActivation(t *testing.T) {
	n := ids.GenerateTestID()
	idx := stubIndex{hits: []retriever.Hit{{NodeID: n, Similarity: 0.9}}}
	c, _ := newTestCitizen(t, idx)

	seeded := seedNode(c, "belief", 0, 1)
	idx.hits[0].NodeID = seeded.ID

	ok := c.InjectStimulus(types.Envelope{
		StimulusID: "s1",
		Text:       "a sufficiently long stimulus body",
		Embedding:  []float32{1, 0, 0},
	})
	require.True(t, ok)

	report := c.Tick(stdctx.Background())
	require.Equal(t, 1, report.Injected)

	updated, ok := c.Arena().Node(seeded.ID)
	require.True(t, ok)
	require.Greater(t, updated.EnergyAt(""), float32(0))
}

func TestInjectStimulusRejectsDuplicateStimulusID(t *testing.T) {
	c, _ := newTestCitizen(t, nil)
	env := types.Envelope{StimulusID: "dup", Text: "a sufficiently long stimulus body"}
	require.True(t, c.InjectStimulus(env))
	require.False(t, c.InjectStimulus(env))
}

func TestMetricsReportsDegradedWhenBreakerOpen(t *testing.T) {
	c, clock := newTestCitizen(t, nil)
	now := clock.Now()
	for i := 0; i < 5; i++ {
		c.retrieverBreaker.RecordFailure(now)
	}
	m := c.Metrics()
	require.Equal(t, StateDegraded, m.ConsciousnessState)
}

func TestMetricsReportsDormantWithNoActiveNodes(t *testing.T) {
	c, _ := newTestCitizen(t, nil)
	seedNode(c, "belief", 0, 1)
	m := c.Metrics()
	require.Equal(t, StateDormant, m.ConsciousnessState)
}

func TestStopHaltsRunLoop(t *testing.T) {
	c, _ := newTestCitizen(t, nil)
	done := make(chan struct{})
	go func() {
		c.Run(stdctx.Background(), 0)
		close(done)
	}()
	c.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}
