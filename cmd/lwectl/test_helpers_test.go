package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lwectl/internal/logging"
	"lwectl/internal/state"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	statePath  string
	mediaDir   string
	engineLog  string
	argsFile   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(homeDir, ".config"))
	t.Setenv("LWE_SCRIPT_DIR", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(homeDir, ".config", "lwectl", "config.toml"),
		statePath:  filepath.Join(base, "state", "state.json"),
		mediaDir:   filepath.Join(base, "media"),
		argsFile:   filepath.Join(base, "engine-args"),
	}
	for _, id := range []string{"100", "200"} {
		if err := os.MkdirAll(filepath.Join(env.mediaDir, id), 0o755); err != nil {
			t.Fatalf("mkdir media item: %v", err)
		}
	}

	script := filepath.Join(base, "bin", "main.sh")
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	body := fmt.Sprintf("#!/bin/sh\necho \"$@\" > %q\n", env.argsFile)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write engine stub: %v", err)
	}

	dataDir := filepath.Join(base, "data")
	env.engineLog = filepath.Join(dataDir, "logs", "engine.log")
	writeTestConfig(t, env.configPath, map[string]string{
		"state_file": env.statePath,
		"data_dir":   dataDir,
		"executable": script,
		"unit_dir":   filepath.Join(base, "units"),
	})
	return env
}

func writeTestConfig(t *testing.T, path string, values map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[paths]
state_file = %q
data_dir = %q

[engine]
executable = %q
stop_timeout_seconds = 1

[logging]
format = "console"
level = "info"
mirror_file = false

[startup]
service_name = "lwectl-test.service"
unit_dir = %q
`, values["state_file"], values["data_dir"], values["executable"], values["unit_dir"])
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("lwectl %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return out
}

func (env *cliTestEnv) state(t *testing.T) *state.Config {
	t.Helper()
	return state.NewStore(env.statePath, logging.NewNop()).Load()
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
