// Package startup registers lwectl with the user's service manager so the
// saved wallpaper is restored at login, and implements that login hook.
package startup

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"lwectl/internal/fileutil"
)

//go:embed unit.service.tmpl
var unitTemplateText string

var unitTemplate = template.Must(template.New("unit").Parse(unitTemplateText))

// Service is the capability the controller needs from a service manager.
// Failures come back as (false, message), never as panics or errors.
type Service interface {
	Enable() (bool, string)
	Disable() (bool, string)
	IsEnabled() bool
}

// Runner executes a service-manager command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

// Systemd manages a systemd --user unit.
type Systemd struct {
	Name       string
	UnitDir    string
	ExecStart  []string
	WorkingDir string
	// Environment lists KEY=VALUE pairs written into the unit.
	Environment []string

	runner  Runner
	timeout time.Duration
}

// Option customizes Systemd.
type Option func(*Systemd)

// WithRunner injects a command runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(s *Systemd) {
		if r != nil {
			s.runner = r
		}
	}
}

// NewSystemd returns a manager for the unit name in unitDir whose ExecStart
// runs execStart.
func NewSystemd(name, unitDir string, execStart []string, opts ...Option) *Systemd {
	s := &Systemd{
		Name:      name,
		UnitDir:   unitDir,
		ExecStart: execStart,
		runner:    execRunner{},
		timeout:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UnitPath is where the unit file is written.
func (s *Systemd) UnitPath() string {
	return filepath.Join(s.UnitDir, s.Name)
}

// Render returns the unit file contents.
func (s *Systemd) Render() ([]byte, error) {
	if len(s.ExecStart) == 0 {
		return nil, errors.New("unit has no ExecStart command")
	}
	quoted := make([]string, 0, len(s.ExecStart))
	for _, part := range s.ExecStart {
		quoted = append(quoted, quoteUnitArg(part))
	}
	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, struct {
		ExecStart   string
		WorkingDir  string
		Environment []string
	}{
		ExecStart:   strings.Join(quoted, " "),
		WorkingDir:  s.WorkingDir,
		Environment: s.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("render unit: %w", err)
	}
	return buf.Bytes(), nil
}

// quoteUnitArg quotes a word for an ExecStart line; systemd splits on
// whitespace and honours double quotes.
func quoteUnitArg(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"\\") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func (s *Systemd) systemctl(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.runner.Run(ctx, "systemctl", append([]string{"--user"}, args...)...)
}

func commandFailure(action string, out []byte, err error) string {
	detail := strings.TrimSpace(string(out))
	if detail == "" {
		detail = err.Error()
	}
	return fmt.Sprintf("Failed to %s startup: %s", action, detail)
}

// Enable writes the unit, reloads the manager and enables the unit.
func (s *Systemd) Enable() (bool, string) {
	content, err := s.Render()
	if err != nil {
		return false, fmt.Sprintf("Failed to create service file: %v", err)
	}
	if err := fileutil.WriteFileAtomic(s.UnitPath(), content, 0o644); err != nil {
		return false, fmt.Sprintf("Failed to create service file: %v", err)
	}
	if out, err := s.systemctl("daemon-reload"); err != nil {
		return false, commandFailure("enable", out, err)
	}
	if out, err := s.systemctl("enable", s.Name); err != nil {
		return false, commandFailure("enable", out, err)
	}
	return true, "Startup enabled successfully"
}

// Disable disables and stops the unit. A failed stop is not reported since
// the unit may not be running.
func (s *Systemd) Disable() (bool, string) {
	if out, err := s.systemctl("disable", s.Name); err != nil {
		return false, commandFailure("disable", out, err)
	}
	_, _ = s.systemctl("stop", s.Name)
	return true, "Startup disabled successfully"
}

// IsEnabled reports whether systemd considers the unit enabled.
func (s *Systemd) IsEnabled() bool {
	_, err := s.systemctl("is-enabled", s.Name)
	return err == nil
}

// Remove deletes the unit file and reloads the manager.
func (s *Systemd) Remove() (bool, string) {
	if err := os.Remove(s.UnitPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Sprintf("Failed to remove service file: %v", err)
	}
	_, _ = s.systemctl("daemon-reload")
	return true, "Service file removed"
}
