// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	stdctx "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/substrate/config"
	cctx "github.com/luxfi/substrate/context"
	"github.com/luxfi/substrate/internal/broadcaster"
	"github.com/luxfi/substrate/internal/graphstore"
	"github.com/luxfi/substrate/internal/membrane"
	"github.com/luxfi/substrate/internal/scheduler"
	"github.com/luxfi/substrate/log"
	"github.com/luxfi/substrate/metrics"
)

// registeredSchemas are the type names the engine accepts from any
// producer until a real L4 protocol registry is wired in its place.
var registeredSchemas = []string{"user_message", "console_error", "commit", "self_observation"}

func runCmd() *cobra.Command {
	var citizenID, configPath, dataDir string
	var devLog bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a citizen's tick engine until signalled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCitizen(citizenID, configPath, dataDir, devLog)
		},
	}

	cmd.Flags().StringVar(&citizenID, "citizen", "", "citizen id to run (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults seeded otherwise)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "pebble data directory for graph and event spill")
	cmd.Flags().BoolVar(&devLog, "dev-log", false, "use a console-friendly development logger")
	_ = cmd.MarkFlagRequired("citizen")

	return cmd
}

func runCitizen(citizenID, configPath, dataDir string, devLog bool) error {
	cfg, err := loadConfig(configPath, citizenID)
	if err != nil {
		os.Exit(exitConfigError)
		return nil
	}

	logger, err := newLogger(devLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: logger init: %v\n", err)
		os.Exit(exitRuntimeError)
		return nil
	}

	reg := metrics.NewRegistry(nil)
	rootCtx := cctx.New(citizenID, logger, reg)

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
	}, func(alert []byte) {
		logger.Errorw("broadcaster self-reported an alert", "alert", string(alert))
	})

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

	ctx, cancel := stdctx.WithCancel(stdctx.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	restartCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Notify(restartCh, syscall.SIGUSR1)

	restart := false
	go func() {
		select {
		case <-sigCh:
			logger.Infow("shutdown signal received")
		case <-restartCh:
			logger.Infow("self-requested restart signal received")
			restart = true
		}
		citizen.Stop()
		cancel()
	}()

	logger.Infow("citizen engine starting", "citizen_id", citizenID, "tick_interval", cfg.TickInterval)
	citizen.Run(ctx, 0)
	logger.Infow("citizen engine stopped")

	if restart {
		os.Exit(exitRestartRequest)
	}
	return nil
}

func loadConfig(path, citizenID string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.CitizenID = citizenID
		return cfg, cfg.Valid()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.CitizenID == "" {
		cfg.CitizenID = citizenID
	}
	return cfg, cfg.Valid()
}

func newLogger(dev bool) (log.Logger, error) {
	if dev {
		return log.NewDevelopment()
	}
	return log.New()
}

func loadGraph(citizen *scheduler.Citizen, store *graphstore.Store, citizenID string) error {
	nodes, err := store.LoadNodes(citizenID)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		citizen.Arena().UpsertNode(n)
	}

	links, err := store.LoadLinks(citizenID)
	if err != nil {
		return err
	}
	for _, l := range links {
		citizen.Arena().UpsertLink(l)
	}

	entities, err := store.LoadSubEntities(citizenID)
	if err != nil {
		return err
	}
	for _, e := range entities {
		citizen.Arena().UpsertSubEntity(e)
	}
	return nil
}
