package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Command describes one backend invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Detached processes run in their own session and write output to
	// Output instead of pipes, so they outlive the controller.
	Detached bool
	Output   *os.File
}

// Process is a started backend.
type Process interface {
	PID() int
	// Pipes returns the output streams; both are nil for detached processes.
	Pipes() (stdout, stderr io.Reader)
	// Wait blocks until exit and returns the exit code. Detached processes
	// are waited on too, so none is left as a zombie.
	Wait() (int, error)
}

// Executor abstracts process handling for testability.
type Executor interface {
	Start(cmd Command) (Process, error)
	// Run executes cmd to completion and returns combined output.
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Start(c Command) (Process, error) {
	cmd := exec.Command(c.Path, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	proc := &osProcess{cmd: cmd}
	if c.Detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		if c.Output != nil {
			cmd.Stdout = c.Output
			cmd.Stderr = c.Output
		}
	} else {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
		proc.stdout, proc.stderr = stdout, stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start backend: %w", err)
	}
	return proc, nil
}

func (commandExecutor) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.WaitDelay = 500 * time.Millisecond
	return cmd.CombinedOutput()
}

type osProcess struct {
	cmd            *exec.Cmd
	stdout, stderr io.Reader
}

func (p *osProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *osProcess) Pipes() (io.Reader, io.Reader) {
	return p.stdout, p.stderr
}

func (p *osProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if p.cmd.ProcessState != nil {
		return p.cmd.ProcessState.ExitCode(), err
	}
	return -1, err
}

// alive reports whether pid names a live process this user may signal. A
// zombie awaiting its parent's wait counts as exited.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if proc.Signal(syscall.Signal(0)) != nil {
		return false
	}
	return !zombie(pid)
}

// zombie reads the state field of /proc/<pid>/stat. Without procfs it
// reports false.
func zombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// The command name is parenthesized and may contain spaces.
	i := bytes.LastIndexByte(data, ')')
	if i < 0 || i+2 >= len(data) {
		return false
	}
	return data[i+2] == 'Z'
}
