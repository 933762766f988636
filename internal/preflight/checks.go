package preflight

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"lwectl/internal/args"
	"lwectl/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEngineExecutable verifies the engine script exists and may be executed.
func CheckEngineExecutable(path string) Result {
	const name = "Engine script"
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not executable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckMediaDirectory applies the same rules the argument builder enforces.
func CheckMediaDirectory(dir string) Result {
	const name = "Media directory"
	if err := args.ValidateDirectory(dir); err != nil {
		detail := err.Error()
		if dir != "" {
			detail = fmt.Sprintf("%s (%v)", dir, err)
		}
		if errors.Is(err, args.ErrDirNotSpecified) {
			detail = "not set; run 'lwectl dir <path>'"
		}
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: dir}
}

// CheckDisplay reports whether a graphical session is reachable.
func CheckDisplay() Result {
	const name = "Display"
	if display := os.Getenv("DISPLAY"); display != "" {
		return Result{Name: name, Passed: true, Detail: "DISPLAY=" + display}
	}
	if wayland := os.Getenv("WAYLAND_DISPLAY"); wayland != "" {
		return Result{Name: name, Passed: true, Detail: "WAYLAND_DISPLAY=" + wayland}
	}
	return Result{Name: name, Detail: "neither DISPLAY nor WAYLAND_DISPLAY is set"}
}

// CheckSystemDeps evaluates the renderer behind script and the service manager.
func CheckSystemDeps(script string) []Result {
	statuses := []deps.Status{deps.CheckBackendForScript(script)}
	statuses = append(statuses, deps.CheckBinaries([]deps.Requirement{{
		Name:        "systemctl",
		Command:     "systemctl",
		Description: "Required for run-at-startup",
		Optional:    true,
	}})...)

	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		detail := s.Command
		if !s.Available {
			detail = s.Detail
		}
		results = append(results, Result{Name: s.Name, Passed: s.Available, Optional: s.Optional, Detail: detail})
	}
	return results
}
