// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Server.URL != "http://127.0.0.1:8080" {
		t.Errorf("server URL = %q, want default", cfg.Server.URL)
	}
	if cfg.Stream.FlushIntervalMS != 80 {
		t.Errorf("flush interval = %d, want 80", cfg.Stream.FlushIntervalMS)
	}
	if cfg.Stream.GateCapacity != 1 {
		t.Errorf("gate capacity = %d, want 1", cfg.Stream.GateCapacity)
	}
}

func TestLoadFromPath_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
default_model = "llama3.1:8b"

[server]
url = "http://10.0.0.5:9090"
timeout_secs = 5

[stream]
flush_interval_ms = 120
gate_capacity = 2

[inference]
autonaming_policy = "always"

[inference.options]
temperature = 0.2
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.DefaultModel != "llama3.1:8b" {
		t.Errorf("default model = %q", cfg.DefaultModel)
	}
	if cfg.Server.URL != "http://10.0.0.5:9090" {
		t.Errorf("server URL = %q", cfg.Server.URL)
	}
	if cfg.Server.TimeoutSecs != 5 {
		t.Errorf("timeout = %d", cfg.Server.TimeoutSecs)
	}
	if cfg.Stream.FlushIntervalMS != 120 || cfg.Stream.GateCapacity != 2 {
		t.Errorf("stream config = %+v", cfg.Stream)
	}
	if cfg.Inference.AutonamingPolicy != "always" {
		t.Errorf("autonaming policy = %q", cfg.Inference.AutonamingPolicy)
	}
	if cfg.Inference.Options["temperature"] != 0.2 {
		t.Errorf("inference options = %v", cfg.Inference.Options)
	}
	// Unset sections keep their defaults.
	if cfg.Server.ReadBufferBytes != 4096 {
		t.Errorf("read buffer = %d, want default 4096", cfg.Server.ReadBufferBytes)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STRAND_SERVER_URL", "http://example.test:8080")
	t.Setenv("STRAND_MODEL", "qwen2.5:14b")
	t.Setenv("STRAND_FLUSH_MS", "200")
	t.Setenv("STRAND_NO_HISTORY", "true")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Server.URL != "http://example.test:8080" {
		t.Errorf("server URL = %q", cfg.Server.URL)
	}
	if cfg.DefaultModel != "qwen2.5:14b" {
		t.Errorf("default model = %q", cfg.DefaultModel)
	}
	if cfg.Stream.FlushIntervalMS != 200 {
		t.Errorf("flush interval = %d", cfg.Stream.FlushIntervalMS)
	}
	if cfg.History.Enabled {
		t.Error("history still enabled despite STRAND_NO_HISTORY")
	}
}

func TestSetDefaults_ClampsFlushInterval(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 80},
		{3, 10},
		{10, 10},
		{500, 500},
		{5000, 1000},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.Stream.FlushIntervalMS = tc.in
		cfg.SetDefaults()
		if cfg.Stream.FlushIntervalMS != tc.want {
			t.Errorf("flush %d: got %d, want %d", tc.in, cfg.Stream.FlushIntervalMS, tc.want)
		}
	}
}

func TestSetDefaults_GateCapacityFloor(t *testing.T) {
	cfg := Default()
	cfg.Stream.GateCapacity = -3
	cfg.SetDefaults()
	if cfg.Stream.GateCapacity != 1 {
		t.Errorf("gate capacity = %d, want 1", cfg.Stream.GateCapacity)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = "not a url"
	cfg.Inference.AutonamingPolicy = "sometimes"
	cfg.History.RetentionDays = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted invalid config")
	}
	msg := err.Error()
	for _, want := range []string{"server.url", "inference.autonaming_policy", "history.retention_days"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error missing %q: %s", want, msg)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "mistral:7b"
	cfg.Stream.GateCapacity = 3
	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath: %v", err)
	}

	got, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if got.DefaultModel != "mistral:7b" {
		t.Errorf("default model = %q", got.DefaultModel)
	}
	if got.Stream.GateCapacity != 3 {
		t.Errorf("gate capacity = %d", got.Stream.GateCapacity)
	}
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()
	SetGlobal(Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
