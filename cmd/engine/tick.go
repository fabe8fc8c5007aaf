// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cctx "github.com/luxfi/substrate/context"
	"github.com/luxfi/substrate/internal/broadcaster"
	"github.com/luxfi/substrate/internal/graphstore"
	"github.com/luxfi/substrate/internal/membrane"
	"github.com/luxfi/substrate/internal/scheduler"
	"github.com/luxfi/substrate/metrics"
)

func tickCmd() *cobra.Command {
	var citizenID, configPath, dataDir string
	var count int

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Advance a citizen's engine by a fixed number of ticks and print a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTicks(citizenID, configPath, dataDir, count)
		},
	}

	cmd.Flags().StringVar(&citizenID, "citizen", "", "citizen id to tick (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "pebble data directory for graph and event spill")
	cmd.Flags().IntVar(&count, "count", 1, "number of ticks to run")
	_ = cmd.MarkFlagRequired("citizen")

	return cmd
}

func runTicks(citizenID, configPath, dataDir string, count int) error {
	cfg, err := loadConfig(configPath, citizenID)
	if err != nil {
		os.Exit(exitConfigError)
		return nil
	}

	logger, err := newLogger(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: logger init: %v\n", err)
		os.Exit(exitRuntimeError)
		return nil
	}

	rootCtx := cctx.New(citizenID, logger, metrics.NewRegistry(nil))

	store, err := graphstore.Open(dataDir + "/graph")
	if err != nil {
		logger.Errorw("open graph store failed", "error", err)
		os.Exit(exitRuntimeError)
		return nil
	}
	defer store.Close()

	spiller, err := broadcaster.OpenPebbleSpiller(dataDir + "/events")
	if err != nil {
		logger.Errorw("open event spill failed", "error", err)
		os.Exit(exitRuntimeError)
		return nil
	}
	defer spiller.Close()

	bus := broadcaster.New(citizenID, spiller, 4096, broadcaster.RetentionPolicy{
		DedupeWindow: cfg.DedupeWindow,
	}, nil)

	citizen, err := scheduler.New(rootCtx, cfg, nil, store, bus)
	if err != nil {
		logger.Errorw("scheduler init failed", "error", err)
		os.Exit(exitConfigError)
		return nil
	}

	registry := membrane.NewRegistry(1<<20, 50, 100)
	for _, name := range registeredSchemas {
		registry.RegisterSchema(name)
	}
	citizen.SetMembrane(registry)

	if err := loadGraph(citizen, store, citizenID); err != nil {
		logger.Errorw("graph load failed", "error", err)
		os.Exit(exitRuntimeError)
		return nil
	}

	ctx := stdctx.Background()
	var last interface{}
	for i := 0; i < count; i++ {
		last = citizen.Tick(ctx)
	}

	b, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
