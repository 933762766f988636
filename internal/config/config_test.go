package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lwectl/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "lwectl", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".config", "lwectl", "state.json"); cfg.Paths.StateFile != want {
		t.Fatalf("unexpected state file: got %q want %q", cfg.Paths.StateFile, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "lwectl"); cfg.Paths.DataDir != want {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, want)
	}
	if want := filepath.Join(cfg.Paths.DataDir, "logs"); cfg.Paths.LogDir != want {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, want)
	}
	if cfg.Engine.StopTimeoutSeconds != 5 {
		t.Fatalf("expected 5s stop timeout, got %d", cfg.Engine.StopTimeoutSeconds)
	}
	if cfg.Startup.ServiceName != "linux-wallpaperengine.service" {
		t.Fatalf("unexpected service name %q", cfg.Startup.ServiceName)
	}
	if cfg.LockPath() != filepath.Join(cfg.Paths.DataDir, "engine.lock") {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
}

func TestLoadHonoursXDGConfigHome(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Chdir(t.TempDir())

	cfg, resolved, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !strings.HasPrefix(resolved, xdg) {
		t.Fatalf("expected resolved path under %q, got %q", xdg, resolved)
	}
	if cfg.Paths.StateFile != filepath.Join(xdg, "lwectl", "state.json") {
		t.Fatalf("unexpected state file %q", cfg.Paths.StateFile)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	configPath := filepath.Join(tempDir, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir": "~/data",
		},
		"engine": map[string]any{
			"executable":           "~/bin/main.sh",
			"stop_timeout_seconds": 2,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.Engine.Executable != filepath.Join(tempDir, "bin", "main.sh") {
		t.Fatalf("unexpected executable %q", cfg.Engine.Executable)
	}
	if cfg.StopTimeout().Seconds() != 2 {
		t.Fatalf("unexpected stop timeout %s", cfg.StopTimeout())
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging values, got %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"timeout", func(c *config.Config) { c.Engine.StopTimeoutSeconds = -1 }, "stop_timeout_seconds"},
		{"service", func(c *config.Config) { c.Startup.ServiceName = "engine" }, "service_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEngineExecutableResolution(t *testing.T) {
	scriptDir := t.TempDir()
	script := filepath.Join(scriptDir, "main.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	t.Setenv("LWE_SCRIPT_DIR", scriptDir)

	cfg := config.Default()
	got, err := cfg.EngineExecutable()
	if err != nil {
		t.Fatalf("EngineExecutable: %v", err)
	}
	if got != script {
		t.Fatalf("expected %q, got %q", script, got)
	}

	cfg.Engine.Executable = "/opt/engine/run"
	if got, _ := cfg.EngineExecutable(); got != "/opt/engine/run" {
		t.Fatalf("explicit executable should win, got %q", got)
	}
}

func TestEngineExecutableMissing(t *testing.T) {
	t.Setenv("LWE_SCRIPT_DIR", t.TempDir())
	cfg := config.Default()
	if _, err := cfg.EngineExecutable(); !errors.Is(err, config.ErrEngineNotFound) {
		t.Fatalf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	path := filepath.Join(tempDir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "data", "logs")
	cfg.Paths.StateFile = filepath.Join(base, "cfg", "state.json")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.StateFile)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
