// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// strand.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Sequence API connection settings
//   - StreamConfig: Flush cadence and admission-gate tuning
//   - HistoryConfig: Local exchange archive settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (STRAND_*)
//   - ~/.strand/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	serverURL := cfg.Server.URL
//	cadence := cfg.Stream.FlushIntervalMS
package config
