package args_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"lwectl/internal/args"
	"lwectl/internal/logging"
	"lwectl/internal/state"
)

func captureLogger(t *testing.T) (*bytes.Buffer, *logging.Logger) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return &buf, logger
}

func lines(buf *bytes.Buffer) []string {
	trimmed := strings.TrimSpace(buf.String())
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestBuildScenarioRandomWithPool(t *testing.T) {
	dir := t.TempDir()
	cfg := state.Default()
	cfg.SetDir(dir)
	cfg.Above = true
	cfg.Pool = []string{"a", "b"}
	cfg.Random = true

	got := args.Build(cfg, nil)
	want := []string{"--dir", dir, "--above", "--pool", "a", "b", "--random"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Build = %v, want %v", got, want)
	}
}

func TestBuildWithoutDirectoryIsEmpty(t *testing.T) {
	buf, logger := captureLogger(t)
	cfg := state.Default()
	cfg.Random = true
	cfg.Above = true

	got := args.Build(cfg, logger.Logger)
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
	if out := lines(buf); len(out) != 1 || !strings.Contains(out[0], "not specified") {
		t.Fatalf("expected one 'not specified' diagnostic, got %q", out)
	}
}

func TestBuildDirectoryFailuresEmitOneDistinctDiagnostic(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"nonexistent", filepath.Join(base, "missing"), "does not exist"},
		{"not a directory", file, "not a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, logger := captureLogger(t)
			cfg := state.Default()
			cfg.SetDir(tt.dir)
			cfg.Window.Active = true
			if got := args.Build(cfg, logger.Logger); len(got) != 0 {
				t.Fatalf("expected empty list, got %v", got)
			}
			out := lines(buf)
			if len(out) != 1 || !strings.Contains(out[0], tt.want) {
				t.Fatalf("expected exactly one %q diagnostic, got %q", tt.want, out)
			}
		})
	}
}

func TestValidateDirectoryUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
	dir := filepath.Join(t.TempDir(), "locked")
	if err := os.Mkdir(dir, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	if err := args.ValidateDirectory(dir); !errors.Is(err, args.ErrDirNotReadable) {
		t.Fatalf("expected ErrDirNotReadable, got %v", err)
	}
}

func TestBuildOrdersWindowBeforeAboveBeforePrimary(t *testing.T) {
	dir := t.TempDir()
	for _, primary := range []string{"delay", "random", "set"} {
		cfg := state.Default()
		cfg.SetDir(dir)
		cfg.Above = true
		cfg.Window = state.Window{Active: true, Resolution: "0x0x1280x720"}
		switch primary {
		case "delay":
			cfg.Delay = state.Delay{Active: true, Timer: "30"}
		case "random":
			cfg.Random = true
		case "set":
			cfg.Set = state.Set{Active: true, ItemID: "42"}
		}
		got := args.Build(cfg, nil)
		window := slices.Index(got, "--window")
		above := slices.Index(got, "--above")
		prim := slices.IndexFunc(got, func(s string) bool { return s == "--delay" || s == "--random" || s == "--set" })
		if window < 0 || above < 0 || prim < 0 || !(window < above && above < prim) {
			t.Fatalf("%s: bad order %v", primary, got)
		}
		if got[window+1] != "0x0x1280x720" {
			t.Fatalf("%s: window resolution missing: %v", primary, got)
		}
	}
}

func TestBuildPrimaryPriority(t *testing.T) {
	dir := t.TempDir()
	cfg := state.Default()
	cfg.SetDir(dir)
	cfg.Delay = state.Delay{Active: true, Timer: "15"}
	cfg.Random = true
	cfg.Set.ItemID = "7"
	got := args.Build(cfg, nil)
	want := []string{"--dir", dir, "--delay", "15"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Build = %v, want %v", got, want)
	}

	cfg.Delay.Active = false
	cfg.Random = false
	got = args.Build(cfg, nil)
	if !reflect.DeepEqual(got, []string{"--dir", dir, "--set", "7"}) {
		t.Fatalf("expected set primary, got %v", got)
	}

	cfg.Set.ItemID = ""
	if got := args.Build(cfg, nil); !reflect.DeepEqual(got, []string{"--dir", dir}) {
		t.Fatalf("expected flag-only list, got %v", got)
	}
}

func TestBuildSoundSubOrder(t *testing.T) {
	dir := t.TempDir()
	cfg := state.Default()
	cfg.SetDir(dir)
	cfg.Sound = state.Sound{Silent: true, NoAutoMute: true, NoAudioProcessing: true, Volume: state.IntVolume(55)}
	got := args.Build(cfg, nil)
	want := []string{"--dir", dir, "--sound", "--silent", "--volume", "55", "--noautomute", "--no-audio-processing"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Build = %v, want %v", got, want)
	}
}

func TestBuildSilentAndNoAudioProcessing(t *testing.T) {
	dir := t.TempDir()
	cfg := state.Default()
	cfg.SetDir(dir)
	cfg.Sound.Silent = true
	cfg.Sound.NoAudioProcessing = true
	got := args.Build(cfg, nil)
	want := []string{"--dir", dir, "--sound", "--silent", "--no-audio-processing"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Build = %v, want %v", got, want)
	}
}

func TestBuildDropsBadVolumeWithDiagnostic(t *testing.T) {
	dir := t.TempDir()
	for _, raw := range []string{`150`, `-1`, `"loud"`} {
		buf, logger := captureLogger(t)
		cfg, _, err := state.Decode([]byte(`{"--sound": {"noautomute": true, "volume": ` + raw + `}}`))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		cfg.SetDir(dir)
		got := args.Build(cfg, logger.Logger)
		want := []string{"--dir", dir, "--sound", "--noautomute"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("volume %s: Build = %v, want %v", raw, got, want)
		}
		if out := lines(buf); len(out) != 1 || !strings.Contains(out[0], "volume ignored") {
			t.Fatalf("volume %s: expected one diagnostic, got %q", raw, out)
		}
	}
}

func TestBuildOnlyVolumeStillEmitsSound(t *testing.T) {
	dir := t.TempDir()
	cfg := state.Default()
	cfg.SetDir(dir)
	cfg.Sound.Volume = state.IntVolume(0)
	got := args.Build(cfg, nil)
	want := []string{"--dir", dir, "--sound", "--volume", "0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Build = %v, want %v", got, want)
	}
}

func TestFormatQuotesArguments(t *testing.T) {
	got := args.Format("/opt/lwe/main.sh", []string{"--dir", "/home/me/My Wallpapers", "--set", "it's"})
	want := `/opt/lwe/main.sh --dir '/home/me/My Wallpapers' --set 'it'\''s'`
	if got != want {
		t.Fatalf("Format = %s, want %s", got, want)
	}
}
