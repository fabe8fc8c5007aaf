// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scheduler implements the Tick Scheduler: the per-citizen runtime
// that drives the four-phase tick pipeline (activation, diffusion, workspace,
// learning) at a fixed cadence and owns every collaborator the pipeline
// touches. It is the only component allowed to advance frame_id.
package scheduler

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/substrate/config"
	cctx "github.com/luxfi/substrate/context"
	"github.com/luxfi/substrate/internal/breaker"
	"github.com/luxfi/substrate/internal/broadcaster"
	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/internal/diffusion"
	"github.com/luxfi/substrate/internal/graph"
	"github.com/luxfi/substrate/internal/graphstore"
	"github.com/luxfi/substrate/internal/injector"
	"github.com/luxfi/substrate/internal/learner"
	"github.com/luxfi/substrate/internal/membrane"
	"github.com/luxfi/substrate/internal/retriever"
	"github.com/luxfi/substrate/internal/subentity"
	"github.com/luxfi/substrate/internal/threshold"
	"github.com/luxfi/substrate/internal/workingmemory"
	"github.com/luxfi/substrate/set"
	"github.com/luxfi/substrate/types"
)

// zSplitDefault and zMergeDefault are the seed z-score cutoffs for the
// sub-entity split/merge lifecycle, before a citizen has enough history for
// these to matter much either way; both gates are still cohort-relative, not
// absolute.
const (
	zSplitDefault = 1.5
	zMergeDefault = 1.5

	reinforcementSeatsTotal = 100
	durationWindow          = 256
	linkFlowSampleEvery      = 50 // ~2%
)

// ConsciousnessState is the coarse summary metrics() reports.
type ConsciousnessState string

const (
	StateDormant    ConsciousnessState = "dormant"
	StateActive     ConsciousnessState = "active"
	StateCoalescing ConsciousnessState = "coalescing"
	StateDegraded   ConsciousnessState = "degraded"
)

// TickReport is tick()'s return contract.
type TickReport struct {
	FrameID        types.FrameID `json:"frame_id"`
	Injected       int           `json:"injected"`
	Flipped        int           `json:"flipped"`
	Strides        int           `json:"strides"`
	WMSelected     int           `json:"wm_selected"`
	TickDurationMs float64       `json:"tick_duration_ms"`
	ConservationOK bool          `json:"conservation_ok"`
}

// EngineMetrics is metrics()'s return contract.
type EngineMetrics struct {
	TickCount           uint64
	NodesTotal          int
	LinksTotal          int
	SubEntitiesTotal    int
	GlobalEnergy        float64
	ActiveNodes         int
	ConsciousnessState  ConsciousnessState
	TickDurationMsP50   float64
	TickDurationMsP95   float64
}

// TraceFormation is one node's formation-quality inputs from a TRACE batch.
type TraceFormation struct {
	NodeID       types.NodeID
	Completeness float64
	Evidence     float64
	Novelty      float64
}

// TraceBatch is one externally-produced TRACE ingestion: reinforcement mass
// per node (optionally label-weighted for rarity) plus formation-quality
// inputs for nodes that formed this pass. A tick with no pending TraceBatch
// runs activation/diffusion/workspace but skips weight learning entirely.
type TraceBatch struct {
	Mass       map[types.NodeID]float64
	Labels     map[types.NodeID]string
	Formations []TraceFormation
}

// Citizen owns one tenant's full runtime: its graph, its adaptive estimators,
// and every external collaborator the tick pipeline calls out to.
type Citizen struct {
	cfg  config.Config
	cctx *cctx.Context

	arena      *graph.Arena
	cohorts    *cohort.Stats
	thresholds *threshold.Oracle
	inj        *injector.Injector
	retr       *retriever.Retriever
	boundary   *subentity.BoundaryLearner
	wm         *workingmemory.Selector
	learn      *learner.Learner

	retrieverBreaker *breaker.Breaker
	persistBreaker   *breaker.Breaker
	broadcastBreaker *breaker.Breaker

	store    *graphstore.Store
	bus      *broadcaster.Broadcaster
	queue    *StimulusQueue
	membrane *membrane.Registry

	mu               sync.Mutex
	frameID          types.FrameID
	tickCount        uint64
	durations        []float64
	durIdx           int
	pendingTraces    []TraceBatch
	tickSourceTypes  []string
	ticksSinceFlush  int
	lastFlush        time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New constructs a Citizen. index may be nil to disable semantic retrieval
// (injection then relies entirely on the keyword-fallback path upstream);
// store may be nil to disable persistence. bus is required: the tick
// pipeline has no silent-success path for its own telemetry.
func New(rootCtx *cctx.Context, cfg config.Config, index retriever.Index, store *graphstore.Store, bus *broadcaster.Broadcaster) (*Citizen, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, errors.New("scheduler: a broadcaster is required")
	}

	cohorts := cohort.New()
	c := &Citizen{
		cfg:              cfg,
		cctx:             rootCtx,
		arena:            graph.New(),
		cohorts:          cohorts,
		thresholds:       threshold.New(cohorts, cfg.EMATimeConstantSeed),
		inj:              injector.New(cohorts),
		boundary:         subentity.NewBoundaryLearner(cohorts, cfg.EMATimeConstantSeed),
		wm:               workingmemory.New(cohorts),
		learn:            learner.New(cohorts, cfg.EMATimeConstantSeed),
		retrieverBreaker: breaker.New(3, cfg.BreakerCooldown),
		persistBreaker:   breaker.New(3, cfg.BreakerCooldown),
		broadcastBreaker: breaker.New(3, cfg.BreakerCooldown),
		store:            store,
		bus:              bus,
		queue:            NewStimulusQueue(cfg.StimulusQueueCap, cfg.DedupeWindow),
		stopCh:           make(chan struct{}),
	}
	if index != nil {
		c.retr = retriever.New(index, cohorts, 64)
	}
	return c, nil
}

// Arena exposes the citizen's graph for boot-time loading and inspection.
func (c *Citizen) Arena() *graph.Arena { return c.arena }

// SetMembrane wires the L4 protocol-registry boundary check. Without one,
// InjectStimulus trusts the caller to have already validated the envelope,
// matching spec.md's framing of the registry as an external collaborator.
func (c *Citizen) SetMembrane(r *membrane.Registry) {
	c.membrane = r
}

// InjectStimulus validates env against the membrane (if wired) and enqueues
// it into the bounded priority queue; a membrane rejection or a duplicate
// stimulus_id within the dedupe window both surface as membrane.reject and
// report false.
func (c *Citizen) InjectStimulus(env types.Envelope) bool {
	now := c.cctx.Clock.Now()

	if c.membrane != nil {
		if reason, ok := c.membrane.Validate(env, len(env.Text)+4*len(env.Embedding), now); !ok {
			c.emit(types.TopicMembraneReject, map[string]string{
				"reason":      string(reason),
				"stimulus_id": env.StimulusID,
			}, env.StimulusID, now)
			return false
		}
	}

	accepted, duplicate := c.queue.Enqueue(env, now)
	if !accepted {
		reason := types.RejectRateLimit
		if duplicate {
			reason = types.RejectIdempotentReplay
		}
		c.emit(types.TopicMembraneReject, map[string]string{
			"reason":      string(reason),
			"stimulus_id": env.StimulusID,
		}, env.StimulusID, now)
		return false
	}
	return true
}

// IngestTrace queues a TRACE batch to be consumed by the next learning phase.
func (c *Citizen) IngestTrace(batch TraceBatch) {
	c.mu.Lock()
	c.pendingTraces = append(c.pendingTraces, batch)
	c.mu.Unlock()
}

func (c *Citizen) drainTraces() []TraceBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pendingTraces
	c.pendingTraces = nil
	return out
}

// Tick executes exactly one tick of the four-phase pipeline.
func (c *Citizen) Tick(ctx stdctx.Context) TickReport {
	start := c.cctx.Clock.Now()
	now := start

	c.mu.Lock()
	c.frameID++
	frameID := c.frameID
	c.tickSourceTypes = c.tickSourceTypes[:0]
	c.mu.Unlock()

	c.refreshThresholds(now)

	var injected, flipped, strides, wmSelected int
	conservationOK := true
	var wmPresence map[types.NodeID]float64

	if err := c.runPhase("activation", func() error {
		n, aerr := c.activation(ctx, now)
		injected = n
		return aerr
	}); err != nil {
		c.reportPhaseFailure("activation", err, now)
	}

	if err := c.runPhase("diffusion", func() error {
		f, s, ok, derr := c.diffusionPhase(now)
		flipped, strides, conservationOK = f, s, ok
		return derr
	}); err != nil {
		conservationOK = false
		c.reportPhaseFailure("diffusion", err, now)
	}

	if err := c.runPhase("workspace", func() error {
		n, presence := c.workspacePhase(now, frameID)
		wmSelected, wmPresence = n, presence
		return nil
	}); err != nil {
		c.reportPhaseFailure("workspace", err, now)
	}

	if err := c.runPhase("learning", func() error {
		_, lerr := c.learningPhase(now, wmPresence)
		return lerr
	}); err != nil {
		c.reportPhaseFailure("learning", err, now)
	}

	c.maybeFlush(now)

	dur := float64(c.cctx.Clock.Now().Sub(start)) / float64(time.Millisecond)
	c.recordDuration(dur)

	c.mu.Lock()
	c.tickCount++
	c.mu.Unlock()

	report := TickReport{
		FrameID:        frameID,
		Injected:       injected,
		Flipped:        flipped,
		Strides:        strides,
		WMSelected:     wmSelected,
		TickDurationMs: dur,
		ConservationOK: conservationOK,
	}
	c.emit(types.TopicTickFrame, report, "", now)
	return report
}

// runPhase recovers a panicking phase into an error so the scheduler can
// record it and move on. It rolls nothing back: diffusion writes energies
// back before its flip detection and boundary steps, the workspace phase
// updates sub-entity activity in place, and learning applies its batch node
// by node, so a phase that fails part-way keeps the writes it already made.
func (c *Citizen) runPhase(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("phase %s panicked: %v", name, r)
		}
	}()
	return fn()
}

func (c *Citizen) reportPhaseFailure(phase string, err error, now time.Time) {
	c.cctx.Log.Errorw("tick phase failed", "phase", phase, "error", err)
	c.cctx.Metrics.Counter("phase_failures_total", "tick phases recovered from a phase error or panic").Inc()
	c.emit(types.TopicComplianceAlert, map[string]string{"phase": phase, "error": err.Error()}, "", now)
}

// refreshThresholds recomputes every node's cohort-derived θ[""] once per
// tick, before activation needs it for deficits and diffusion needs it for
// outflow.
func (c *Citizen) refreshThresholds(now time.Time) {
	for _, n := range c.arena.Nodes() {
		ensureNodeMaps(n)
		key := cohort.Key{TypeName: n.TypeName, Scope: c.nodeScope(n)}
		n.Threshold[""] = c.thresholds.Observe(key, float64(n.EnergyAt("")), now)
	}
}

// activation drains the stimulus queue and lets the injector allocate energy
// for each envelope; allocated deltas are buffered and only applied to the
// arena once every envelope in this tick has been processed.
func (c *Citizen) activation(ctx stdctx.Context, now time.Time) (int, error) {
	envs := c.queue.DrainUpTo(c.cfg.StimulusPerTickCap)
	if len(envs) == 0 {
		return 0, nil
	}

	nodes := c.arena.Nodes()
	deltas := make(map[types.NodeID]float64)
	injected := 0

	for _, env := range envs {
		if !injector.ValidText(env.Text) && len(env.Embedding) == 0 {
			c.emit(types.TopicMembraneReject, map[string]string{
				"reason":      string(types.RejectUnknownSchema),
				"stimulus_id": env.StimulusID,
			}, env.StimulusID, now)
			continue
		}

		hits, ok := c.searchHits(ctx, env, now)
		if !ok {
			// Breaker refused or search failed: no energy deposited and no
			// fallback search is made, but never silent.
			c.emit(types.TopicStimulusInjection, injector.Debug{}, env.StimulusID, now)
			continue
		}
		if len(hits) == 0 {
			continue
		}

		deficits := make([]injector.Deficit, 0, len(hits))
		for _, h := range hits {
			n, ok := c.arena.Node(h.NodeID)
			if !ok {
				continue
			}
			deficits = append(deficits, injector.Deficit{
				NodeID:     n.ID,
				Similarity: h.Similarity,
				Energy:     float64(n.EnergyAt("")),
				Threshold:  n.ThresholdAt(""),
			})
		}
		if len(deficits) == 0 {
			continue
		}

		budget := c.inj.Budget(hits, c.systemHealth(), env.SourceType)
		debug := c.inj.Allocate(deficits, budget, activeDeficitEntropy(nodes), averageSimilarity(hits), 0, 0)
		for _, a := range debug.Allocations {
			deltas[a.NodeID] += a.Delta
		}
		c.emit(types.TopicStimulusInjection, debug, env.StimulusID, now)
		injected++

		c.mu.Lock()
		c.tickSourceTypes = append(c.tickSourceTypes, env.SourceType)
		c.mu.Unlock()
	}

	for id, delta := range deltas {
		if n, ok := c.arena.Node(id); ok {
			ensureNodeMaps(n)
			n.Energy[""] = float32(math.Max(0, float64(n.EnergyAt(""))+delta))
			n.LastActivationAt = now
		}
	}
	return injected, nil
}

// searchHits runs the retriever under its circuit breaker and timeout. A
// false return means the breaker refused the call or the search returned an
// error, including exceeding RetrieverTimeout; a nil embedding means there
// was nothing to search, which is not a failure.
func (c *Citizen) searchHits(ctx stdctx.Context, env types.Envelope, now time.Time) ([]retriever.Hit, bool) {
	if c.retr == nil || len(env.Embedding) == 0 {
		return nil, true
	}

	rctx, cancel := stdctx.WithTimeout(ctx, c.cfg.RetrieverTimeout)
	defer cancel()

	var hits []retriever.Hit
	err := c.retrieverBreaker.Run(now, func() error {
		var rerr error
		hits, rerr = c.retr.Search(rctx, env.Embedding)
		return rerr
	})
	if err != nil {
		return nil, false
	}
	return hits, true
}

// diffusionPhase runs one frame of energy redistribution, decay, and flip
// detection, buffering every delta before writing it back to the arena.
func (c *Citizen) diffusionPhase(now time.Time) (flips int, strides int, conservationOK bool, err error) {
	nodes := c.arena.Nodes()
	if len(nodes) == 0 {
		return 0, 0, true, nil
	}

	pre := make(map[types.NodeID]float64, len(nodes))
	thresholdMap := make(map[types.NodeID]float64, len(nodes))
	states := make([]diffusion.NodeState, 0, len(nodes))
	for _, n := range nodes {
		e := float64(n.EnergyAt(""))
		th := n.ThresholdAt("")
		pre[n.ID] = e
		thresholdMap[n.ID] = th

		key := cohort.Key{TypeName: n.TypeName, Scope: c.nodeScope(n)}
		kappa := diffusion.Kappa(c.cohorts, key, e)

		links := c.arena.OutLinks(n.ID)
		outs := make([]diffusion.OutLink, 0, len(links))
		for _, l := range links {
			outs = append(outs, diffusion.OutLink{Target: l.Target, Weight: l.Weight})
		}
		states = append(states, diffusion.NodeState{ID: n.ID, Energy: e, Threshold: th, Kappa: kappa, OutLinks: outs})
	}

	deltas := diffusion.Diffuse(states)
	conservationOK = diffusion.ConservationOK(deltas)

	post := make(map[types.NodeID]float64, len(nodes))
	for _, n := range nodes {
		e := pre[n.ID] + deltas[n.ID]
		var dt time.Duration
		if !n.LastUpdateTimestamp.IsZero() {
			dt = now.Sub(n.LastUpdateTimestamp)
		}
		tau := n.HalfLife
		if tau <= 0 {
			tau = diffusion.SeedHalfLife()
		}
		e = diffusion.Decay(e, dt, tau)
		if e < 0 {
			e = 0
		}
		post[n.ID] = e
	}

	for _, n := range nodes {
		old, neu := pre[n.ID], post[n.ID]
		ensureNodeMaps(n)
		n.Energy[""] = float32(neu)
		n.LastUpdateTimestamp = now
		if m, ok := n.PrimaryMembership(); ok {
			if e, ok2 := c.arena.SubEntity(m.SubEntity); ok2 {
				subentity.ApplyEnergyDelta(e, m.Weight, old, neu)
			}
		}
	}

	flipEvents := diffusion.DetectFlips(pre, post, thresholdMap, c.cfg.FlipTopK)
	for _, f := range flipEvents {
		c.emit(types.TopicNodeFlip, f, "", now)
	}

	var strideList []subentity.Stride
	for _, f := range flipEvents {
		n, ok := c.arena.Node(f.NodeID)
		if !ok {
			continue
		}
		m, ok := n.PrimaryMembership()
		if !ok {
			continue
		}
		strideList = append(strideList, subentity.Stride{
			Source:                 m.SubEntity,
			Target:                 m.SubEntity,
			TargetNode:             f.NodeID,
			DeltaEnergy:            f.EnergyPost - f.EnergyPre,
			GapPreThreshold:        f.Threshold - f.EnergyPre,
			TargetMembershipWeight: m.Weight,
		})
	}
	if len(strideList) > 0 {
		c.boundary.Accumulate(strideList, now)
	}

	c.closeInjectorFeedbackLoop(len(flipEvents) > 0)

	if c.sampleLinkFlow() {
		c.emit(types.TopicLinkFlowSummary, deltas, "", now)
	}

	return len(flipEvents), len(strideList), conservationOK, nil
}

// closeInjectorFeedbackLoop regresses the injector's per-source gate on
// whether this tick's injected stimuli preceded any flip at all.
func (c *Citizen) closeInjectorFeedbackLoop(anyFlipped bool) {
	c.mu.Lock()
	sources := append([]string(nil), c.tickSourceTypes...)
	c.mu.Unlock()

	yield := 0.0
	if anyFlipped {
		yield = 1.0
	}
	seen := make(map[string]bool, len(sources))
	for _, st := range sources {
		if seen[st] {
			continue
		}
		seen[st] = true
		c.inj.ObserveFlipYield(st, yield)
	}
}

func (c *Citizen) sampleLinkFlow() bool {
	return c.frameIDSnapshot()%linkFlowSampleEvery == 0
}

// workspacePhase progresses the sub-entity lifecycle, then selects this
// tick's working memory. Coalition formation (the cluster proposal itself)
// is an external extractor/applier concern; this phase only detects and
// signals crystallize/split/merge over sub-entities the arena already holds.
func (c *Citizen) workspacePhase(now time.Time, frameID types.FrameID) (int, map[types.NodeID]float64) {
	for _, e := range c.arena.SubEntities() {
		if !e.Active {
			if subentity.ShouldCrystallize(e, frameID) {
				e.Active = true
				c.emit(types.TopicSubEntitySpawn, e, "", now)
			}
			continue
		}

		cohesion := 0.0
		if e.ThresholdCache > 0 {
			cohesion = e.EnergyCache / e.ThresholdCache
		}
		splitKey := cohort.Key{TypeName: "subentity_cohesion", Scope: e.Scope}
		if subentity.ShouldSplit(c.cohorts, splitKey, cohesion, zSplitDefault) {
			e.Active = false
			c.emit(types.TopicSubEntitySplit, e, "", now)
			continue
		}

		mergeKey := cohort.Key{TypeName: "subentity_precedence", Scope: e.Scope}
		for i := range e.Relations {
			if subentity.ShouldMerge(c.cohorts, mergeKey, e.Relations[i].PrecedenceEMA, zMergeDefault) {
				c.emit(types.TopicSubEntityMerged, e.Relations[i], "", now)
			}
		}
	}

	candidates := c.workingMemoryCandidates()
	selections := c.wm.Select(candidates, float64(c.cfg.WMTokenBudgetSeed))
	c.emit(types.TopicWMEmit, selections, "", now)

	presence := make(map[types.NodeID]float64, len(selections))
	for _, s := range selections {
		if _, ok := c.arena.Node(s.ID); ok {
			presence[s.ID] = 1
			continue
		}
		if e, ok := c.arena.SubEntity(s.ID); ok {
			for _, m := range e.Members {
				presence[m] = 1
			}
		}
	}
	return len(selections), presence
}

func (c *Citizen) workingMemoryCandidates() []workingmemory.Candidate {
	var active []*types.SubEntity
	for _, e := range c.arena.SubEntities() {
		if e.Active {
			active = append(active, e)
		}
	}
	if len(active) > 0 {
		out := make([]workingmemory.Candidate, 0, len(active))
		for _, e := range active {
			out = append(out, workingmemory.Candidate{
				ID:      e.ID,
				Value:   e.EnergyCache,
				Tokens:  math.Max(1, float64(e.MemberCount)),
				Members: set.Of(e.Members...),
			})
		}
		return out
	}

	// Dormant fallback: rank nodes directly.
	var out []workingmemory.Candidate
	for _, n := range c.arena.Nodes() {
		v := float64(n.EnergyAt("")) - n.ThresholdAt("")
		if v <= 0 {
			continue
		}
		out = append(out, workingmemory.Candidate{ID: n.ID, Value: v, Tokens: 1, Members: set.Of(n.ID)})
	}
	return out
}

// learningPhase consumes any TRACE batches queued since the last pass. A tick
// with nothing pending performs no learning and emits no weights.updated.
func (c *Citizen) learningPhase(now time.Time, wmPresence map[types.NodeID]float64) (learner.BatchResult, error) {
	batches := c.drainTraces()
	if len(batches) == 0 {
		return learner.BatchResult{}, nil
	}

	mass := make(map[types.NodeID]float64)
	labels := make(map[types.NodeID]string)
	formations := make(map[types.NodeID]TraceFormation)
	for _, b := range batches {
		for id, m := range b.Mass {
			mass[id] += m
		}
		for id, l := range b.Labels {
			labels[id] = l
		}
		for _, f := range b.Formations {
			formations[f.NodeID] = f
		}
	}
	if len(labels) > 0 {
		rarity := learner.LabelWeights(labels)
		for id := range mass {
			if w, ok := rarity[id]; ok {
				mass[id] *= w
			}
		}
	}

	seats := learner.ApportionSeats(reinforcementSeatsTotal, mass)
	signals := make(map[types.NodeID]learner.Signal, len(seats))
	for id, seatCount := range seats {
		n, ok := c.arena.Node(id)
		if !ok {
			continue
		}
		f := formations[id]
		signals[id] = learner.Signal{
			TypeName:     n.TypeName,
			Scope:        c.nodeScope(n),
			TraceSeats:   float64(seatCount),
			Completeness: f.Completeness,
			Evidence:     f.Evidence,
			Novelty:      f.Novelty,
			WMPresence:   wmPresence[id],
		}
	}

	result := c.learn.ApplyBatch(c.arena.Nodes(), signals, now)
	if result.UpdatedCount > 0 {
		c.emit(types.TopicWeightsUpdated, result, "", now)
	}
	return result, nil
}

// maybeFlush coalesces persistence writes per config.PersistenceFlushEveryTicks
// / PersistenceFlushInterval, whichever comes first.
func (c *Citizen) maybeFlush(now time.Time) {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	c.ticksSinceFlush++
	dueByTicks := c.cfg.PersistenceFlushEveryTicks > 0 && c.ticksSinceFlush >= c.cfg.PersistenceFlushEveryTicks
	dueByTime := c.cfg.PersistenceFlushInterval > 0 && now.Sub(c.lastFlush) >= c.cfg.PersistenceFlushInterval
	c.mu.Unlock()
	if !dueByTicks && !dueByTime {
		return
	}

	err := c.persistBreaker.Run(now, func() error {
		if err := c.store.BatchUpsertNodes(c.cctx.CitizenID, c.arena.Nodes()); err != nil {
			return err
		}
		return c.store.BatchUpsertLinks(c.cctx.CitizenID, c.arena.Links())
	})
	if err != nil {
		c.cctx.Log.Warnw("persistence flush failed", "error", err)
		return
	}

	c.mu.Lock()
	c.ticksSinceFlush = 0
	c.lastFlush = now
	c.mu.Unlock()
}

// emit marshals payload and broadcasts it under the citizen's current frame,
// guarded by the broadcast circuit breaker. A duplicate stimulus_id within
// the dedupe window is expected behavior, not a failure.
func (c *Citizen) emit(topic string, payload any, stimulusID string, now time.Time) {
	b, err := json.Marshal(payload)
	if err != nil {
		c.cctx.Log.Errorw("event payload marshal failed", "topic", topic, "error", err)
		return
	}

	frameID := c.frameIDSnapshot()
	berr := c.broadcastBreaker.Run(now, func() error {
		_, err := c.bus.Broadcast(topic, frameID, stimulusID, b, now)
		if errors.Is(err, types.ErrIdempotentReplay) {
			return nil
		}
		return err
	})
	if berr != nil {
		c.cctx.Log.Warnw("event broadcast failed", "topic", topic, "error", berr)
	}
}

func (c *Citizen) frameIDSnapshot() types.FrameID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameID
}

// systemHealth is ρ: the fraction of guarded external collaborators
// currently closed, feeding the injector's f(ρ) health gate.
func (c *Citizen) systemHealth() float64 {
	healthy := 0.0
	if !c.retrieverBreaker.Open() {
		healthy++
	}
	if !c.persistBreaker.Open() {
		healthy++
	}
	if !c.broadcastBreaker.Open() {
		healthy++
	}
	return healthy / 3
}

func (c *Citizen) nodeScope(n *types.Node) types.Scope {
	if m, ok := n.PrimaryMembership(); ok {
		if e, ok2 := c.arena.SubEntity(m.SubEntity); ok2 {
			return e.Scope
		}
	}
	return types.ScopePersonal
}

func (c *Citizen) recordDuration(ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.durations) < durationWindow {
		c.durations = append(c.durations, ms)
		return
	}
	c.durations[c.durIdx] = ms
	c.durIdx = (c.durIdx + 1) % durationWindow
}

// Metrics returns the current EngineMetrics snapshot.
func (c *Citizen) Metrics() EngineMetrics {
	nodes := c.arena.Nodes()
	var globalEnergy float64
	active := 0
	for _, n := range nodes {
		e := float64(n.EnergyAt(""))
		globalEnergy += e
		if e > n.ThresholdAt("") {
			active++
		}
	}

	c.mu.Lock()
	durations := append([]float64(nil), c.durations...)
	tickCount := c.tickCount
	c.mu.Unlock()
	sort.Float64s(durations)

	subEntities := c.arena.SubEntityCount()
	return EngineMetrics{
		TickCount:          tickCount,
		NodesTotal:         len(nodes),
		LinksTotal:         c.arena.LinkCount(),
		SubEntitiesTotal:   subEntities,
		GlobalEnergy:       globalEnergy,
		ActiveNodes:        active,
		ConsciousnessState: c.consciousnessState(active, len(nodes), subEntities),
		TickDurationMsP50:  percentile(durations, 0.50),
		TickDurationMsP95:  percentile(durations, 0.95),
	}
}

func (c *Citizen) consciousnessState(active, total, subEntities int) ConsciousnessState {
	if c.retrieverBreaker.Open() || c.persistBreaker.Open() || c.broadcastBreaker.Open() {
		return StateDegraded
	}
	if total == 0 || active == 0 {
		return StateDormant
	}
	if subEntities > 0 {
		return StateCoalescing
	}
	return StateActive
}

// Run drives Tick at the configured cadence until ctx is cancelled, Stop is
// called, or maxTicks is reached (0 means unbounded).
func (c *Citizen) Run(ctx stdctx.Context, maxTicks int) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Tick(ctx)
			count++
			if maxTicks > 0 && count >= maxTicks {
				return
			}
		}
	}
}

// Stop requests Run to exit at the next cadence boundary.
func (c *Citizen) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func ensureNodeMaps(n *types.Node) {
	if n.Energy == nil {
		n.Energy = make(map[string]float32)
	}
	if n.Threshold == nil {
		n.Threshold = make(map[string]float64)
	}
}

func activeDeficitEntropy(nodes []*types.Node) float64 {
	values := make([]float64, 0, len(nodes))
	for _, n := range nodes {
		d := float64(n.EnergyAt("")) - n.ThresholdAt("")
		if d > 0 {
			values = append(values, d)
		}
	}
	return shannonEntropy(values)
}

func shannonEntropy(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return 0
	}
	var h float64
	for _, v := range values {
		if v <= 0 {
			continue
		}
		p := v / total
		h -= p * math.Log(p)
	}
	return h
}

func averageSimilarity(hits []retriever.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += h.Similarity
	}
	return sum / float64(len(hits))
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
