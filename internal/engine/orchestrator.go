// Package engine supervises the external wallpaper backend: it stops the
// previous instance through the backend's own --stop protocol, builds the
// argument list from the current state and launches the new instance.
//
// At most one backend is current per machine. The in-memory handle covers
// this controller; the slot file and its flock cover every other lwectl
// process (CLI, panel, login hook, hotplug watcher).
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"lwectl/internal/args"
	"lwectl/internal/history"
	"lwectl/internal/logging"
	"lwectl/internal/modes"
	"lwectl/internal/state"
)

// State is the lifecycle position of the backend slot.
type State int32

const (
	Idle State = iota
	Stopping
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Stopping:
		return "stopping"
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// ErrNoExecutable is returned when no backend path is configured.
var ErrNoExecutable = errors.New("engine executable not configured")

// ErrBusy is returned when another controller holds the engine lock.
var ErrBusy = errors.New("another lwectl process is starting or stopping the engine")

const lockRetryDelay = 50 * time.Millisecond

// Options configures the orchestrator.
type Options struct {
	Executable  string
	WorkingDir  string
	StopTimeout time.Duration
	LockPath    string
	SlotPath    string
	// Detached launches write backend output to OutputPath and survive
	// the controller; attached launches stream output to the logger.
	Detached   bool
	OutputPath string
}

// Recorder stores launch history.
type Recorder interface {
	Record(ctx context.Context, l history.Launch) error
	Finish(ctx context.Context, runID string, exitCode int, outcome history.Outcome, detail string) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(o *Orchestrator) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// WithRecorder records every launch and its outcome.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

type tracked struct {
	proc     Process
	slot     Slot
	detached bool
	stopped  atomic.Bool
}

// Orchestrator owns the backend slot.
type Orchestrator struct {
	opts     Options
	state    *state.Handle
	exec     Executor
	recorder Recorder
	logger   *slog.Logger

	// mu serializes Run, Stop and Halt.
	mu sync.Mutex

	status  atomic.Int32
	curMu   sync.Mutex
	current *tracked
	wg      sync.WaitGroup
}

// New constructs an orchestrator over the shared state handle.
func New(opts Options, handle *state.Handle, logger *slog.Logger, options ...Option) *Orchestrator {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	o := &Orchestrator{
		opts:   opts,
		state:  handle,
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(logger, "engine"),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// State returns this controller's view of the slot.
func (o *Orchestrator) State() State {
	return State(o.status.Load())
}

func (o *Orchestrator) setState(s State) {
	o.status.Store(int32(s))
}

func (o *Orchestrator) currentProcess() *tracked {
	o.curMu.Lock()
	defer o.curMu.Unlock()
	return o.current
}

func (o *Orchestrator) setTracked(t *tracked) {
	o.curMu.Lock()
	o.current = t
	o.curMu.Unlock()
}

// Current returns the backend this or another controller launched, if any.
func (o *Orchestrator) Current() (Slot, bool) {
	if t := o.currentProcess(); t != nil {
		return t.slot, true
	}
	if o.opts.SlotPath == "" {
		return Slot{}, false
	}
	slot, err := readSlot(o.opts.SlotPath)
	if err != nil || slot == nil {
		return Slot{}, false
	}
	return *slot, true
}

// RunOptions carries the caller's current listing. When Items is nil the
// persisted pool is used unchanged.
type RunOptions struct {
	Items []string
	View  string
}

// Result describes a launch.
type Result struct {
	Launched bool
	RunID    string
	PID      int
	Args     []string
}

// Run reloads, normalizes and persists state, stops the current backend and
// launches a new one. An empty argument list means nothing to run and is not
// an error.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (Result, error) {
	return o.run(ctx, opts, nil)
}

// ApplyItem selects id as the explicit item and runs.
func (o *Orchestrator) ApplyItem(ctx context.Context, id string, opts RunOptions) (Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{}, errors.New("item id is required")
	}
	return o.run(ctx, opts, func(cfg *state.Config) { modes.SelectItem(cfg, id) })
}

func (o *Orchestrator) run(ctx context.Context, opts RunOptions, mutate func(cfg *state.Config)) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	unlock, err := o.lock(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	// Update starts from the persisted document, so writes made by other
	// lwectl processes since this one loaded are kept. A failed save is logged
	// by the handle; the in-memory state still drives the launch.
	_ = o.state.Update(func(cfg *state.Config) {
		if mutate != nil {
			mutate(cfg)
		}
		modes.Normalize(cfg)
		if opts.Items != nil {
			modes.UpdatePool(cfg, opts.Items, opts.View)
		}
	})

	o.stopLocked(ctx, false)

	snapshot := o.state.Snapshot()
	argv := args.Build(snapshot, o.logger)
	if len(argv) == 0 {
		o.logger.Info("nothing to run", logging.String(logging.FieldEventType, "engine_nothing_to_run"))
		return Result{}, nil
	}
	if strings.TrimSpace(o.opts.Executable) == "" {
		logging.ErrorWithContext(o.logger, "engine executable not configured", "engine_not_found",
			logging.String(logging.FieldErrorHint, "set engine.executable in config.toml or LWE_SCRIPT_DIR"),
			logging.String(logging.FieldImpact, "wallpaper not started"),
		)
		return Result{}, ErrNoExecutable
	}
	return o.spawnLocked(ctx, snapshot, argv)
}

func (o *Orchestrator) spawnLocked(ctx context.Context, snapshot *state.Config, argv []string) (Result, error) {
	o.setState(Starting)
	runID := uuid.NewString()
	logger := o.logger.With(logging.String(logging.FieldRunID, runID))
	exe := o.opts.Executable
	logger.Info("starting backend", logging.String("command", args.Format(exe, argv)))

	cmd := Command{Path: exe, Args: argv, Dir: o.opts.WorkingDir, Detached: o.opts.Detached}
	if o.opts.Detached && o.opts.OutputPath != "" {
		out, err := openOutput(o.opts.OutputPath)
		if err != nil {
			logging.WarnWithContext(logger, "backend output file unavailable", "engine_output_unavailable",
				logging.String("path", o.opts.OutputPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "backend output is discarded"),
			)
		} else {
			defer out.Close()
			cmd.Output = out
		}
	}

	started := time.Now()
	launch := history.Launch{
		RunID:      runID,
		StartedAt:  started,
		Executable: exe,
		Args:       argv,
		Mode:       string(modes.Active(snapshot)),
		ItemID:     snapshot.Set.ItemID,
	}

	proc, err := o.exec.Start(cmd)
	if err != nil {
		o.setState(Idle)
		logging.ErrorWithContext(logger, "backend failed to start", "engine_spawn_failed",
			logging.String("executable", exe),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the engine executable exists and is executable"),
			logging.String(logging.FieldImpact, "wallpaper not started"),
		)
		code := -1
		now := time.Now()
		launch.Outcome = history.OutcomeSpawnFailed
		launch.ExitCode = &code
		launch.FinishedAt = &now
		launch.Detail = err.Error()
		o.record(ctx, launch)
		return Result{}, fmt.Errorf("start engine: %w", err)
	}

	t := &tracked{
		proc:     proc,
		detached: o.opts.Detached,
		slot:     Slot{PID: proc.PID(), RunID: runID, StartedAt: started, Executable: exe, Args: argv},
	}
	if o.opts.SlotPath != "" {
		if err := writeSlot(o.opts.SlotPath, t.slot); err != nil {
			logging.WarnWithContext(logger, "engine slot not recorded", "engine_slot_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "other lwectl processes cannot stop this backend"),
			)
		}
	}
	launch.PID = t.slot.PID
	launch.Outcome = history.OutcomeRunning
	o.record(ctx, launch)

	o.setTracked(t)
	o.setState(Running)
	logger.Info("backend started", logging.Int("pid", t.slot.PID), logging.String(logging.FieldEventType, "engine_spawned"))

	if t.detached {
		go reap(t, logger)
	} else {
		o.watch(t, logger)
	}
	return Result{Launched: true, RunID: runID, PID: t.slot.PID, Args: argv}, nil
}

func openOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// reap waits on a detached backend so it does not linger as a zombie. It is
// not tracked by Wait: the backend is meant to outlive this process, and
// history for it is finished by whoever stops it.
func reap(t *tracked, logger *slog.Logger) {
	code, err := t.proc.Wait()
	if code != 0 && !t.stopped.Load() {
		logging.WarnWithContext(logger, "detached backend exited with non-zero status", "engine_exit_nonzero",
			logging.Int("exit_code", code),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check engine.log in the log directory"),
			logging.String(logging.FieldImpact, "wallpaper may not be running"),
		)
		return
	}
	logger.Debug("detached backend exited", logging.Int("exit_code", code))
}

// watch drains both output streams and reports the exit. None of it blocks Run.
func (o *Orchestrator) watch(t *tracked, logger *slog.Logger) {
	stdout, stderr := t.proc.Pipes()
	var drains sync.WaitGroup
	drains.Add(2)
	o.wg.Add(1)
	go drain(&drains, stdout, "[BACKEND]", "stdout", logger)
	go drain(&drains, stderr, "[BACKEND ERROR]", "stderr", logger)
	go func() {
		defer o.wg.Done()
		drains.Wait()
		code, err := t.proc.Wait()
		outcome := history.OutcomeExited
		if t.stopped.Load() {
			outcome = history.OutcomeStopped
		}
		detail := ""
		if code != 0 {
			if err != nil {
				detail = err.Error()
			}
			logging.WarnWithContext(logger, "backend exited with non-zero status", "engine_exit_nonzero",
				logging.Int("exit_code", code),
				logging.String(logging.FieldErrorHint, "the engine may daemonize; check [BACKEND ERROR] lines"),
				logging.String(logging.FieldImpact, "wallpaper may still be running detached"),
			)
		} else {
			logger.Info("backend exited", logging.Int("exit_code", code))
		}
		if o.recorder != nil {
			if err := o.recorder.Finish(context.Background(), t.slot.RunID, code, outcome, detail); err != nil {
				o.historyFailed(err)
			}
		}
	}()
}

func drain(wg *sync.WaitGroup, r io.Reader, prefix, stream string, logger *slog.Logger) {
	defer wg.Done()
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		logger.Info(prefix+" "+line, logging.String(logging.FieldStream, stream))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Debug("backend stream closed", logging.String(logging.FieldStream, stream), logging.Error(err))
	}
}

// Stop asks the current backend to exit. It returns immediately when nothing
// is tracked; otherwise it waits at most the stop timeout. Failures are logged.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	unlock := o.lockForStop(ctx)
	defer unlock()
	o.stopLocked(ctx, false)
}

// Halt sends the stop request even when no backend is tracked, covering
// engines started outside lwectl.
func (o *Orchestrator) Halt(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	unlock := o.lockForStop(ctx)
	defer unlock()
	o.stopLocked(ctx, true)
}

func (o *Orchestrator) stopLocked(ctx context.Context, force bool) {
	cur := o.currentProcess()
	var slot *Slot
	slotBroken := false
	if o.opts.SlotPath != "" {
		var err error
		slot, err = readSlot(o.opts.SlotPath)
		if err != nil {
			slotBroken = true
			logging.WarnWithContext(o.logger, "engine slot unreadable; stopping anyway", "engine_slot_corrupt",
				logging.String("path", o.opts.SlotPath),
				logging.Error(err),
			)
		}
	}
	if cur == nil && slot == nil && !slotBroken && !force {
		return
	}

	exe := strings.TrimSpace(o.opts.Executable)
	if exe == "" && slot != nil {
		exe = slot.Executable
	}
	runID := ""
	switch {
	case cur != nil:
		runID = cur.slot.RunID
		cur.stopped.Store(true)
	case slot != nil:
		runID = slot.RunID
	}
	logger := o.logger
	if runID != "" {
		logger = logger.With(logging.String(logging.FieldRunID, runID))
	}

	if exe == "" {
		logging.WarnWithContext(logger, "cannot stop backend: executable not configured", "engine_not_found",
			logging.String(logging.FieldErrorHint, "set engine.executable in config.toml"),
			logging.String(logging.FieldImpact, "a previous wallpaper may keep running"),
		)
		o.clearSlot(logger)
		return
	}

	o.setState(Stopping)
	timeout := o.opts.StopTimeout
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	started := time.Now()
	out, err := o.exec.Run(stopCtx, Command{Path: exe, Args: []string{"--stop"}, Dir: o.opts.WorkingDir})
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			logger.Info("[BACKEND] " + line)
		}
	}
	switch {
	case errors.Is(stopCtx.Err(), context.DeadlineExceeded):
		logging.WarnWithContext(logger, "backend stop timed out", "engine_stop_timeout",
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldErrorHint, "raise engine.stop_timeout_seconds if the engine is slow to exit"),
			logging.String(logging.FieldImpact, "continuing as if stopped"),
		)
	case err != nil:
		logging.WarnWithContext(logger, "backend stop request failed", "engine_stop_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "continuing as if stopped"),
		)
	default:
		logger.Info("backend stopped", logging.Duration("elapsed", time.Since(started)))
	}

	// Attached processes are finished by their watcher with the real exit code.
	if runID != "" && o.recorder != nil && (cur == nil || cur.detached) {
		if err := o.recorder.Finish(context.Background(), runID, 0, history.OutcomeStopped, ""); err != nil && !errors.Is(err, history.ErrNotFound) {
			o.historyFailed(err)
		}
	}
	o.clearSlot(logger)
}

func (o *Orchestrator) clearSlot(logger *slog.Logger) {
	if o.opts.SlotPath != "" {
		if err := removeSlot(o.opts.SlotPath); err != nil {
			logger.Debug("remove engine slot", logging.Error(err))
		}
	}
	o.setTracked(nil)
	o.setState(Idle)
}

// Wait blocks until every attached backend has exited and its output drained.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) lock(ctx context.Context) (func(), error) {
	if o.opts.LockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(o.opts.LockPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock dir: %w", err)
	}
	fl := flock.New(o.opts.LockPath)
	lockCtx, cancel := context.WithTimeout(ctx, o.opts.StopTimeout+2*time.Second)
	defer cancel()
	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("acquire engine lock: %w", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			o.logger.Warn("failed to release engine lock", logging.Error(err))
		}
	}, nil
}

// lockForStop never fails: stopping proceeds without the lock when it is
// unavailable.
func (o *Orchestrator) lockForStop(ctx context.Context) func() {
	unlock, err := o.lock(ctx)
	if err != nil {
		logging.WarnWithContext(o.logger, "engine lock unavailable; stopping without it", "engine_lock_busy",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a concurrent launch may race this stop"),
		)
		return func() {}
	}
	return unlock
}

func (o *Orchestrator) record(ctx context.Context, l history.Launch) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, l); err != nil {
		o.historyFailed(err)
	}
}

func (o *Orchestrator) historyFailed(err error) {
	logging.WarnWithContext(o.logger, "launch history not updated", "history_write_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "history command output is incomplete"),
	)
}
