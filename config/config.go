// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the citizen engine's tunables: tick cadence, queue
// caps, persistence coalescing, and the seed values that the adaptive
// subsystems (thresholds, EMAs, learning rates) start from before they are
// learned online. Nothing here is a substitute for the cohort-derived
// values spec.md requires at runtime; these are only boot seeds.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all citizen engine parameters.
type Config struct {
	CitizenID string `yaml:"citizen_id"`

	// TickInterval is the scheduler's cadence (spec.md §4.1 default 100ms).
	TickInterval time.Duration `yaml:"tick_interval"`

	// StimulusQueueCap bounds the injector's priority queue.
	StimulusQueueCap int `yaml:"stimulus_queue_cap"`
	// StimulusPerTickCap bounds how many envelopes are drained per tick.
	StimulusPerTickCap int `yaml:"stimulus_per_tick_cap"`
	// DedupeWindow is the sliding window for stimulus_id replay detection.
	DedupeWindow time.Duration `yaml:"dedupe_window"`

	// FlipTopK bounds node.flip events emitted per tick (~25, clipped 50).
	FlipTopK int `yaml:"flip_top_k"`

	// WMTokenBudgetSeed is the working-memory token budget the scheduler
	// passes to the selector on every tick; it is not adjusted from usage.
	WMTokenBudgetSeed int `yaml:"wm_token_budget_seed"`

	// HalfLifeSeed is not read by the scheduler, which seeds unset node
	// half-lives from diffusion.SeedHalfLife() instead.
	HalfLifeSeed time.Duration `yaml:"half_life_seed"`

	// EMATimeConstantSeed seeds EMA cadence before an EMA has two samples
	// of its own to derive one from.
	EMATimeConstantSeed time.Duration `yaml:"ema_time_constant_seed"`

	// PersistenceFlushEveryTicks and PersistenceFlushInterval coalesce
	// writes per spec.md §2 ("Persistence is written at a lower cadence").
	PersistenceFlushEveryTicks int           `yaml:"persistence_flush_every_ticks"`
	PersistenceFlushInterval   time.Duration `yaml:"persistence_flush_interval"`

	// RetrieverTimeout bounds each retriever search; a search that exceeds
	// it counts as a failure for the retriever's circuit breaker, which
	// opens after consecutive failures. PersistenceTimeout and
	// BroadcastTimeout are not read by the scheduler or the broadcaster.
	RetrieverTimeout   time.Duration `yaml:"retriever_timeout"`
	PersistenceTimeout time.Duration `yaml:"persistence_timeout"`
	BroadcastTimeout   time.Duration `yaml:"broadcast_timeout"`
	BreakerCooldown    time.Duration `yaml:"breaker_cooldown"`

	// SpillDir names a spill directory; the engine binary does not read it
	// and opens the broadcaster's spill under its --data-dir instead.
	SpillDir string `yaml:"spill_dir"`
	// SpillHighWatermark is not read: no spill-depth alert is raised.
	SpillHighWatermark int `yaml:"spill_high_watermark"`

	// HeartbeatInterval is the per-topic liveness heartbeat (spec.md §4.7).
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// MinTextLength is the upstream minimum-length text filter on stimuli.
	MinTextLength int `yaml:"min_text_length"`

	// EmbeddingDim is the configured dimension for unit-norm embeddings.
	EmbeddingDim int `yaml:"embedding_dim"`

	HotReload bool `yaml:"hot_reload"`
}

// Default returns sensible defaults matching spec.md's stated cadences.
func Default() Config {
	return Config{
		TickInterval:               100 * time.Millisecond,
		StimulusQueueCap:           4096,
		StimulusPerTickCap:         64,
		DedupeWindow:               30 * time.Second,
		FlipTopK:                   25,
		WMTokenBudgetSeed:          512,
		HalfLifeSeed:               5 * time.Minute,
		EMATimeConstantSeed:        30 * time.Second,
		PersistenceFlushEveryTicks: 50,
		PersistenceFlushInterval:   5 * time.Second,
		RetrieverTimeout:           200 * time.Millisecond,
		PersistenceTimeout:         500 * time.Millisecond,
		BroadcastTimeout:           50 * time.Millisecond,
		BreakerCooldown:            10 * time.Second,
		SpillDir:                   os.TempDir(),
		SpillHighWatermark:         10000,
		HeartbeatInterval:          30 * time.Second,
		MinTextLength:              8,
		EmbeddingDim:               256,
	}
}

// Valid reports whether the configuration is internally consistent.
func (c Config) Valid() error {
	if c.CitizenID == "" {
		return fmt.Errorf("config: citizen_id is required")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick_interval must be positive")
	}
	if c.StimulusQueueCap < 1 {
		return fmt.Errorf("config: stimulus_queue_cap must be >= 1")
	}
	if c.FlipTopK < 1 || c.FlipTopK > 50 {
		return fmt.Errorf("config: flip_top_k must be in [1,50]")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("config: embedding_dim must be positive")
	}
	return nil
}

// Load reads a YAML config file, applying Default() for any unset zero
// values the YAML document omits.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
