package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" || !results[2].Optional {
		t.Fatalf("unexpected blank requirement status %#v", results[2])
	}
}

func TestCheckBackendPrefersBuildNextToScript(t *testing.T) {
	tmp := t.TempDir()
	core := filepath.Join(tmp, "core")
	build := filepath.Join(tmp, "build")
	for _, dir := range []string{core, build} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	scriptPath := filepath.Join(core, "main.sh")
	stub := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(scriptPath, stub, 0o755); err != nil {
		t.Fatal(err)
	}
	binary := filepath.Join(build, BackendBinary)
	if err := os.WriteFile(binary, stub, 0o755); err != nil {
		t.Fatal(err)
	}

	status := CheckBackendForScript(scriptPath)
	if !status.Available {
		t.Fatalf("expected backend next to script, got detail %q", status.Detail)
	}
	if filepath.Clean(status.Command) != binary {
		t.Fatalf("expected %q, got %q", binary, status.Command)
	}
}

func TestCheckBackendPathFallback(t *testing.T) {
	binDir := t.TempDir()
	binary := filepath.Join(binDir, BackendBinary)
	if err := os.WriteFile(binary, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)

	status := CheckBackendForScript(filepath.Join(t.TempDir(), "main.sh"))
	if !status.Available || status.Command != binary {
		t.Fatalf("expected PATH fallback %q, got %#v", binary, status)
	}
}

func TestCheckBackendNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckBackendForScript("")
	if status.Available {
		t.Fatal("expected backend resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when backend is unavailable")
	}
}

func TestNonExecutableCandidateSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, BackendBinary), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", "")
	if status := CheckBackendForScript(filepath.Join(dir, "main.sh")); status.Available {
		t.Fatalf("non-executable file must not count, got %#v", status)
	}
}

func TestCheckBinariesPathCommands(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "main.sh")
	if err := os.WriteFile(plain, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	results := CheckBinaries([]Requirement{
		{Name: "Not executable", Command: plain},
		{Name: "Absent", Command: filepath.Join(dir, "gone.sh")},
		{Name: "Directory", Command: dir},
	})
	for _, r := range results {
		if r.Available || r.Detail == "" {
			t.Fatalf("%s: expected unavailable with detail, got %#v", r.Name, r)
		}
	}
}

func TestCheckBinariesResolvesPath(t *testing.T) {
	binDir := t.TempDir()
	tool := filepath.Join(binDir, "systemctl")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)
	status := CheckBinaries([]Requirement{{Name: "systemctl", Command: "systemctl"}})[0]
	if !status.Available || status.Command != tool {
		t.Fatalf("expected %q resolved from PATH, got %#v", tool, status)
	}
}
