// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes the supervisor watching this process distinguishes between.
const (
	exitOK             = 0
	exitConfigError    = 2
	exitRuntimeError   = 3
	exitRestartRequest = 99
)

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Runs and inspects a citizen's consciousness substrate tick engine",
	Long: `engine drives the per-citizen tick pipeline: energy injection and
diffusion, sub-entity coalition tracking, working-memory selection, and
weight learning, emitting one frame of telemetry per tick on the event bus.`,
}

func main() {
	rootCmd.AddCommand(runCmd(), tickCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(exitRuntimeError)
	}
}
