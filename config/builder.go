// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Builder provides a fluent interface for constructing a Config, mirroring
// the preset-then-override pattern the teacher's consensus config uses.
type Builder struct {
	cfg Config
	err error
}

// NewBuilder starts from Default().
func NewBuilder() *Builder {
	return &Builder{cfg: Default()}
}

func (b *Builder) CitizenID(id string) *Builder {
	if b.err == nil {
		b.cfg.CitizenID = id
	}
	return b
}

func (b *Builder) TickInterval(d time.Duration) *Builder {
	if b.err == nil {
		b.cfg.TickInterval = d
	}
	return b
}

func (b *Builder) SpillDir(dir string) *Builder {
	if b.err == nil {
		b.cfg.SpillDir = dir
	}
	return b
}

func (b *Builder) HotReload(enabled bool) *Builder {
	if b.err == nil {
		b.cfg.HotReload = enabled
	}
	return b
}

// FromFile loads YAML from path and merges it on top of the builder's
// current state.
func (b *Builder) FromFile(path string) *Builder {
	if b.err != nil {
		return b
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		b.err = fmt.Errorf("config: read %s: %w", path, err)
		return b
	}
	if err := yaml.Unmarshal(raw, &b.cfg); err != nil {
		b.err = fmt.Errorf("config: parse %s: %w", path, err)
	}
	return b
}

// Build validates and returns the assembled Config.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if err := b.cfg.Valid(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}
