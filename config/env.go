// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "os"

// Env holds the connection strings and flags spec.md §6 defines as the
// process's environment surface. LoadEnv reads them all in one call so they
// can be threaded explicitly rather than read ad hoc from os.Getenv deeper in
// the call stack; the engine binary does not call it.
type Env struct {
	CitizenGraphURL string
	RetrieverURL    string
	BusURL          string
	HotReload       bool
	EventSpillDir   string
}

// LoadEnv reads the MP_* environment variables.
func LoadEnv() Env {
	return Env{
		CitizenGraphURL: os.Getenv("MP_CITIZEN_GRAPH_URL"),
		RetrieverURL:    os.Getenv("MP_RETRIEVER_URL"),
		BusURL:          os.Getenv("MP_BUS_URL"),
		HotReload:       os.Getenv("MP_HOT_RELOAD") == "true" || os.Getenv("MP_HOT_RELOAD") == "1",
		EventSpillDir:   os.Getenv("MP_EVENT_SPILL_DIR"),
	}
}
