package engine_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"lwectl/internal/engine"
	"lwectl/internal/history"
	"lwectl/internal/logging"
	"lwectl/internal/state"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func captureLogger(t *testing.T) (*syncBuffer, *logging.Logger) {
	t.Helper()
	buf := &syncBuffer{}
	logger, err := logging.New(logging.Options{Level: "info", Console: buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return buf, logger
}

// writeStub creates an engine script that appends each invocation to calls.
func writeStub(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")
	script := filepath.Join(dir, "main.sh")
	content := "#!/bin/sh\necho \"$@\" >> " + calls + "\n" + body
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return script, calls
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read calls: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func newHandle(t *testing.T, mutate func(cfg *state.Config)) *state.Handle {
	t.Helper()
	cfg := state.Default()
	if mutate != nil {
		mutate(cfg)
	}
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"), logging.NewNop())
	return state.NewHandle(cfg, store, logging.NewNop())
}

func withMedia(dir string) func(cfg *state.Config) {
	return func(cfg *state.Config) {
		cfg.SetDir(dir)
		cfg.Random = true
	}
}

func options(t *testing.T, exe string) engine.Options {
	data := t.TempDir()
	return engine.Options{
		Executable:  exe,
		StopTimeout: 2 * time.Second,
		LockPath:    filepath.Join(data, "engine.lock"),
		SlotPath:    filepath.Join(data, "engine.slot"),
	}
}

type fakeProcess struct{ pid int }

func (p fakeProcess) PID() int                    { return p.pid }
func (fakeProcess) Pipes() (io.Reader, io.Reader) { return nil, nil }
func (fakeProcess) Wait() (int, error)            { return 0, nil }

type fakeExecutor struct {
	mu       sync.Mutex
	runs     []engine.Command
	starts   []engine.Command
	startErr error
}

func (f *fakeExecutor) Start(cmd engine.Command) (engine.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, cmd)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return fakeProcess{pid: 4242}, nil
}

func (f *fakeExecutor) Run(_ context.Context, cmd engine.Command) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, cmd)
	return nil, nil
}

func (f *fakeExecutor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts), len(f.runs)
}

type fakeRecorder struct {
	mu       sync.Mutex
	launches []history.Launch
	finished map[string]history.Outcome
}

func (r *fakeRecorder) Record(_ context.Context, l history.Launch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.launches = append(r.launches, l)
	return nil
}

func (r *fakeRecorder) Finish(_ context.Context, runID string, _ int, outcome history.Outcome, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		r.finished = map[string]history.Outcome{}
	}
	r.finished[runID] = outcome
	return nil
}

func TestStopWithoutTrackedProcessReturnsImmediately(t *testing.T) {
	exec := &fakeExecutor{}
	orch := engine.New(options(t, "/opt/engine/main.sh"), newHandle(t, nil), logging.NewNop(), engine.WithExecutor(exec))

	start := time.Now()
	orch.Stop(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Stop took %s with nothing tracked", elapsed)
	}
	if _, runs := exec.counts(); runs != 0 {
		t.Fatalf("expected no stop invocation, got %d", runs)
	}
	if orch.State() != engine.Idle {
		t.Fatalf("state = %s", orch.State())
	}
}

func TestHaltAlwaysSendsStop(t *testing.T) {
	exec := &fakeExecutor{}
	orch := engine.New(options(t, "/opt/engine/main.sh"), newHandle(t, nil), nil, engine.WithExecutor(exec))
	orch.Halt(context.Background())
	if _, runs := exec.counts(); runs != 1 || exec.runs[0].Args[0] != "--stop" {
		t.Fatalf("expected one --stop, got %+v", exec.runs)
	}
}

func TestRunWithoutDirectoryLaunchesNothing(t *testing.T) {
	exec := &fakeExecutor{}
	orch := engine.New(options(t, "/opt/engine/main.sh"), newHandle(t, nil), nil, engine.WithExecutor(exec))
	res, err := orch.Run(context.Background(), engine.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Launched {
		t.Fatal("expected no launch")
	}
	if starts, _ := exec.counts(); starts != 0 {
		t.Fatalf("expected no spawn, got %d", starts)
	}
	if orch.State() != engine.Idle {
		t.Fatalf("state = %s", orch.State())
	}
}

func TestRunDrainsOutputAndTracksSlot(t *testing.T) {
	script, calls := writeStub(t, "if [ \"$1\" = \"--stop\" ]; then exit 0; fi\necho hello\necho oops >&2\nexit 0\n")
	media := t.TempDir()
	buf, logger := captureLogger(t)
	opts := options(t, script)
	rec := &fakeRecorder{}
	orch := engine.New(opts, newHandle(t, withMedia(media)), logger.Logger, engine.WithRecorder(rec))

	res, err := orch.Run(context.Background(), engine.RunOptions{Items: []string{"a", "b"}, View: "all"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Launched || res.RunID == "" || res.PID == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if orch.State() != engine.Running {
		t.Fatalf("state = %s", orch.State())
	}
	slot, ok := orch.Current()
	if !ok || slot.RunID != res.RunID {
		t.Fatalf("Current = %+v, %v", slot, ok)
	}
	if _, err := os.Stat(opts.SlotPath); err != nil {
		t.Fatalf("slot file missing: %v", err)
	}
	orch.Wait()

	got := readCalls(t, calls)
	want := "--dir " + media + " --pool a b --random"
	if len(got) != 1 || got[0] != want {
		t.Fatalf("calls = %q, want [%q]", got, want)
	}
	out := buf.String()
	for _, line := range []string{"[BACKEND] hello", "[BACKEND ERROR] oops", "event_type=engine_spawned"} {
		if !strings.Contains(out, line) {
			t.Fatalf("expected %q in log:\n%s", line, out)
		}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.launches) != 1 || rec.launches[0].Mode != "random" {
		t.Fatalf("launch not recorded: %+v", rec.launches)
	}
	if rec.finished[res.RunID] != history.OutcomeExited {
		t.Fatalf("exit not recorded: %+v", rec.finished)
	}
}

func TestSecondRunStopsFirst(t *testing.T) {
	script, calls := writeStub(t, "exit 0\n")
	media := t.TempDir()
	opts := options(t, script)
	orch := engine.New(opts, newHandle(t, withMedia(media)), nil)

	for i := 0; i < 2; i++ {
		if _, err := orch.Run(context.Background(), engine.RunOptions{}); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		orch.Wait()
	}
	got := readCalls(t, calls)
	if len(got) != 3 || got[1] != "--stop" {
		t.Fatalf("expected launch, --stop, launch; got %q", got)
	}
}

func TestStopTimeoutProceedsAsStopped(t *testing.T) {
	script, _ := writeStub(t, "if [ \"$1\" = \"--stop\" ]; then exec sleep 5; fi\nexit 0\n")
	media := t.TempDir()
	buf, logger := captureLogger(t)
	opts := options(t, script)
	opts.StopTimeout = 200 * time.Millisecond
	orch := engine.New(opts, newHandle(t, withMedia(media)), logger.Logger)

	if _, err := orch.Run(context.Background(), engine.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	start := time.Now()
	orch.Stop(context.Background())
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Stop exceeded its bound: %s", elapsed)
	}
	if orch.State() != engine.Idle {
		t.Fatalf("state = %s", orch.State())
	}
	if _, err := os.Stat(opts.SlotPath); !os.IsNotExist(err) {
		t.Fatalf("expected slot removed, got %v", err)
	}
	if !strings.Contains(buf.String(), "event_type=engine_stop_timeout") {
		t.Fatalf("expected timeout warning:\n%s", buf.String())
	}
	orch.Wait()
}

func TestNonZeroExitIsWarning(t *testing.T) {
	script, _ := writeStub(t, "exit 3\n")
	buf, logger := captureLogger(t)
	orch := engine.New(options(t, script), newHandle(t, withMedia(t.TempDir())), logger.Logger)
	if _, err := orch.Run(context.Background(), engine.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	orch.Wait()
	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "exit_code=3") {
		t.Fatalf("expected non-zero exit warning:\n%s", out)
	}
}

func TestSpawnFailureLeavesIdle(t *testing.T) {
	rec := &fakeRecorder{}
	exec := &fakeExecutor{startErr: errors.New("permission denied")}
	orch := engine.New(options(t, "/opt/engine/main.sh"), newHandle(t, withMedia(t.TempDir())), nil,
		engine.WithExecutor(exec), engine.WithRecorder(rec))
	if _, err := orch.Run(context.Background(), engine.RunOptions{}); err == nil {
		t.Fatal("expected spawn error")
	}
	if orch.State() != engine.Idle {
		t.Fatalf("state = %s", orch.State())
	}
	if _, ok := orch.Current(); ok {
		t.Fatal("nothing should be tracked after a failed spawn")
	}
	if len(rec.launches) != 1 || rec.launches[0].Outcome != history.OutcomeSpawnFailed {
		t.Fatalf("expected spawn failure recorded, got %+v", rec.launches)
	}
}

func TestRunWithoutExecutableFails(t *testing.T) {
	orch := engine.New(options(t, ""), newHandle(t, withMedia(t.TempDir())), nil)
	if _, err := orch.Run(context.Background(), engine.RunOptions{}); !errors.Is(err, engine.ErrNoExecutable) {
		t.Fatalf("expected ErrNoExecutable, got %v", err)
	}
}

func TestApplyItemSelectsExplicitItem(t *testing.T) {
	exec := &fakeExecutor{}
	media := t.TempDir()
	handle := newHandle(t, withMedia(media))
	orch := engine.New(options(t, "/opt/engine/main.sh"), handle, nil, engine.WithExecutor(exec))

	res, err := orch.ApplyItem(context.Background(), "777", engine.RunOptions{Items: []string{"777", "888"}, View: "all"})
	if err != nil {
		t.Fatalf("ApplyItem: %v", err)
	}
	want := []string{"--dir", media, "--set", "777"}
	if strings.Join(res.Args, " ") != strings.Join(want, " ") {
		t.Fatalf("args = %v, want %v", res.Args, want)
	}
	snap := handle.Snapshot()
	if snap.Random || snap.Delay.Active || !snap.Set.Active || snap.Set.ItemID != "777" || len(snap.Pool) != 0 {
		t.Fatalf("unexpected state %+v", snap)
	}
	orch.Wait()
}

func TestStopReachesSlotFromAnotherController(t *testing.T) {
	launcher := &fakeExecutor{}
	opts := options(t, "/opt/engine/main.sh")
	media := t.TempDir()
	first := engine.New(opts, newHandle(t, withMedia(media)), nil, engine.WithExecutor(launcher))
	if _, err := first.Run(context.Background(), engine.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	first.Wait()

	stopper := &fakeExecutor{}
	second := engine.New(opts, newHandle(t, nil), nil, engine.WithExecutor(stopper))
	if _, ok := second.Current(); !ok {
		t.Fatal("expected slot visible to a second controller")
	}
	second.Stop(context.Background())
	if _, runs := stopper.counts(); runs != 1 {
		t.Fatalf("expected --stop from second controller, got %d", runs)
	}
	if _, ok := second.Current(); ok {
		t.Fatal("expected slot cleared")
	}
}

func TestRunReloadsStateSavedByAnotherProcess(t *testing.T) {
	script, calls := writeStub(t, "exit 0\n")
	media := t.TempDir()
	path := filepath.Join(t.TempDir(), "state.json")
	store := state.NewStore(path, logging.NewNop())
	seed := state.Default()
	withMedia(media)(seed)
	if err := store.Save(seed); err != nil {
		t.Fatalf("Save: %v", err)
	}
	orch := engine.New(options(t, script), state.NewHandle(store.Load(), store, logging.NewNop()), nil)

	if _, err := orch.Run(context.Background(), engine.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	orch.Wait()

	other := state.NewStore(path, nil)
	edit := other.Load()
	edit.Above = true
	edit.Favorites = []string{"9"}
	if err := other.Save(edit); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := orch.Run(context.Background(), engine.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	orch.Wait()

	got := readCalls(t, calls)
	if len(got) != 3 || !strings.Contains(got[2], "--above") || !strings.Contains(got[2], "--random") {
		t.Fatalf("second launch ignored the saved document: %q", got)
	}
	loaded := state.NewStore(path, nil).Load()
	if !loaded.Above || len(loaded.Favorites) != 1 || loaded.Favorites[0] != "9" {
		t.Fatalf("saved document overwritten: above=%v favorites=%v", loaded.Above, loaded.Favorites)
	}
}

func detachedOptions(t *testing.T, exe string) engine.Options {
	t.Helper()
	opts := options(t, exe)
	opts.Detached = true
	opts.OutputPath = filepath.Join(t.TempDir(), "engine.log")
	return opts
}

// procState returns the state letter from /proc/<pid>/stat, or "" once the
// process is gone.
func procState(pid int) string {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return ""
	}
	i := bytes.LastIndexByte(data, ')')
	if i < 0 || i+2 >= len(data) {
		return ""
	}
	return string(data[i+2])
}

func TestDetachedLaunchesAreReaped(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("procfs not available")
	}
	script, _ := writeStub(t, "exit 0\n")
	opts := detachedOptions(t, script)
	orch := engine.New(opts, newHandle(t, withMedia(t.TempDir())), nil)

	var pids []int
	for i := 0; i < 3; i++ {
		res, err := orch.Run(context.Background(), engine.RunOptions{})
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		pids = append(pids, res.PID)
	}
	for _, pid := range pids {
		deadline := time.Now().Add(5 * time.Second)
		for procState(pid) == "Z" {
			if time.Now().After(deadline) {
				t.Fatalf("pid %d left as a zombie", pid)
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	slot, ok := orch.Current()
	if !ok {
		t.Fatal("expected last launch tracked")
	}
	deadline := time.Now().Add(5 * time.Second)
	for slot.Alive() {
		if time.Now().After(deadline) {
			t.Fatalf("exited backend %d still reported alive", slot.PID)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDetachedNonZeroExitIsWarning(t *testing.T) {
	script, _ := writeStub(t, "exit 4\n")
	buf, logger := captureLogger(t)
	orch := engine.New(detachedOptions(t, script), newHandle(t, withMedia(t.TempDir())), logger.Logger)
	if _, err := orch.Run(context.Background(), engine.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	orch.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(buf.String(), "exit_code=4") {
		if time.Now().After(deadline) {
			t.Fatalf("expected detached exit warning:\n%s", buf.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(buf.String(), "event_type=engine_exit_nonzero") {
		t.Fatalf("expected engine_exit_nonzero event:\n%s", buf.String())
	}
}
