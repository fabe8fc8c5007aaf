// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wraps prometheus.Registerer with the small set of
// primitives the tick engine needs: counters, gauges and averagers keyed by
// name, plus a read-only snapshot view for the broadcaster's counters()
// endpoint. Counters are monotonic and only reset across process lifetimes,
// per spec.md §9.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter tracks a monotonically increasing count.
type Counter interface {
	Inc()
	Add(delta int64)
	Read() int64
}

type counter struct {
	mu    sync.RWMutex
	value int64
	prom  prometheus.Counter
}

// NewCounter returns a new Counter, registering a backing prometheus.Counter
// if reg is non-nil.
func NewCounter(name, help string, reg prometheus.Registerer) (Counter, error) {
	c := &counter{}
	if reg != nil {
		pc := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		if err := reg.Register(pc); err != nil {
			return nil, err
		}
		c.prom = pc
	}
	return c, nil
}

func (c *counter) Inc() { c.Add(1) }

func (c *counter) Add(delta int64) {
	c.mu.Lock()
	c.value += delta
	c.mu.Unlock()
	if c.prom != nil {
		c.prom.Add(float64(delta))
	}
}

func (c *counter) Read() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Gauge tracks a value that can go up or down.
type Gauge interface {
	Set(value float64)
	Add(delta float64)
	Read() float64
}

type gauge struct {
	mu   sync.RWMutex
	val  float64
	prom prometheus.Gauge
}

// NewGauge returns a new Gauge, registering a backing prometheus.Gauge if
// reg is non-nil.
func NewGauge(name, help string, reg prometheus.Registerer) (Gauge, error) {
	g := &gauge{}
	if reg != nil {
		pg := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		if err := reg.Register(pg); err != nil {
			return nil, err
		}
		g.prom = pg
	}
	return g, nil
}

func (g *gauge) Set(v float64) {
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
	if g.prom != nil {
		g.prom.Set(v)
	}
}

func (g *gauge) Add(delta float64) {
	g.mu.Lock()
	g.val += delta
	g.mu.Unlock()
	if g.prom != nil {
		g.prom.Add(delta)
	}
}

func (g *gauge) Read() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.val
}

// Averager tracks a running mean, e.g. tick_duration_ms.
type Averager interface {
	Observe(value float64)
	Read() float64
}

type averager struct {
	mu    sync.RWMutex
	sum   float64
	count float64
	prom  prometheus.Histogram
}

// NewAverager returns a new Averager, registering a backing
// prometheus.Histogram if reg is non-nil.
func NewAverager(name, help string, reg prometheus.Registerer) (Averager, error) {
	a := &averager{}
	if reg != nil {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: prometheus.DefBuckets,
		})
		if err := reg.Register(h); err != nil {
			return nil, err
		}
		a.prom = h
	}
	return a, nil
}

func (a *averager) Observe(v float64) {
	a.mu.Lock()
	a.sum += v
	a.count++
	a.mu.Unlock()
	if a.prom != nil {
		a.prom.Observe(v)
	}
}

func (a *averager) Read() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

// Registry is a named collection of counters, gauges and averagers.
type Registry struct {
	reg       prometheus.Registerer
	mu        sync.RWMutex
	counters  map[string]Counter
	gauges    map[string]Gauge
	averagers map[string]Averager
}

// NewRegistry wraps a prometheus.Registerer. reg may be nil, in which case
// metrics are tracked in-process only (used by tests).
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{
		reg:       reg,
		counters:  make(map[string]Counter),
		gauges:    make(map[string]Gauge),
		averagers: make(map[string]Averager),
	}
}

func (r *Registry) Counter(name, help string) Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c, err := NewCounter(name, help, r.reg)
	if err != nil {
		c, _ = NewCounter(name, help, nil)
	}
	r.counters[name] = c
	return c
}

func (r *Registry) Gauge(name, help string) Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g, err := NewGauge(name, help, r.reg)
	if err != nil {
		g, _ = NewGauge(name, help, nil)
	}
	r.gauges[name] = g
	return g
}

func (r *Registry) Averager(name, help string) Averager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.averagers[name]; ok {
		return a
	}
	a, err := NewAverager(name, help, r.reg)
	if err != nil {
		a, _ = NewAverager(name, help, nil)
	}
	r.averagers[name] = a
	return a
}

// Snapshot is a read-only view of current counter values, served by the
// broadcaster's counters() endpoint (spec.md §4.7).
type Snapshot map[string]int64

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := make(Snapshot, len(r.counters))
	for name, c := range r.counters {
		s[name] = c.Read()
	}
	return s
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%d counters", len(s))
}
