// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the strand command tree.
package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/api"
	"github.com/jeranaias/strand/internal/config"
	"github.com/jeranaias/strand/internal/gate"
	"github.com/jeranaias/strand/internal/history"
	"github.com/jeranaias/strand/internal/registry"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	flagConfig  string
	flagServer  string
	flagModel   string
	flagNoColor bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "strand",
	Short: "Streaming chat client for a Sequence API server",
	Long: `strand is a terminal client for conversation sequences served by a
Sequence API inference server.

It submits continuations, assembles the newline-delimited JSON response
stream into messages, and keeps a local archive of completed exchanges.

Quick Start:
  strand chat                       # Start a new conversation
  strand list                       # List recent sequences
  strand show <sequence-id>         # Print one sequence
  strand history --search "topic"   # Search the local archive`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default ~/.strand/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Sequence API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Inference model (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable styled output")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// =============================================================================
// APP WIRING
// =============================================================================

// app bundles everything a command needs against one server.
type app struct {
	mu       sync.Mutex
	cfg      *config.Config
	client   *api.Client
	gate     *gate.Gate
	registry *registry.Registry
	archive  *history.Archive // nil when the archive is disabled
}

// loadConfig resolves the effective configuration from file, environment,
// and command-line flags.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFromPath(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flagServer != "" {
		cfg.Server.URL = flagServer
	}
	if flagModel != "" {
		cfg.DefaultModel = flagModel
	}
	if flagNoColor {
		cfg.UI.Color = false
	}
	return cfg, nil
}

// newApp wires the client, gate, registry, and archive from configuration.
// events builds per-sequence observer callbacks; it may be nil for
// commands that never stream.
func newApp(events registry.Options) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyStyles(cfg)

	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:        cfg.Server.URL,
		Timeout:        time.Duration(cfg.Server.TimeoutSecs) * time.Second,
		ReadBufferSize: cfg.Server.ReadBufferBytes,
	})

	g := gate.New(cfg.Stream.GateCapacity)
	events.FlushInterval = time.Duration(cfg.Stream.FlushIntervalMS) * time.Millisecond
	reg := registry.New(client, g, events)

	a := &app{cfg: cfg, client: client, gate: g, registry: reg}

	if cfg.History.Enabled {
		path, err := cfg.HistoryPath()
		if err == nil {
			if arch, err := history.Open(path); err == nil {
				a.archive = arch
			} else {
				fmt.Fprintf(os.Stderr, "Warning: history archive unavailable: %v\n", err)
			}
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.archive != nil {
		a.archive.Close()
	}
}

// continuationParams builds the per-request pass-through parameters from
// configuration.
func (a *app) continuationParams(seed string) api.ContinuationParams {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	return api.ContinuationParams{
		InferenceModelID:  cfg.DefaultModel,
		AutonamingModelID: cfg.Inference.AutonamingModel,
		AutonamingPolicy:  cfg.Inference.AutonamingPolicy,
		RetrievalPolicy:   cfg.Inference.RetrievalPolicy,
		InferenceOptions:  cfg.Inference.Options,
		SeedText:          seed,
	}
}

// reload swaps in a hot-reloaded configuration. Only request parameters
// and display settings take effect; client, gate, and registry keep their
// construction-time settings until restart.
func (a *app) reload(cfg *config.Config) {
	if flagModel != "" {
		cfg.DefaultModel = flagModel
	}
	if flagNoColor {
		cfg.UI.Color = false
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// config returns the current configuration snapshot.
func (a *app) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}
