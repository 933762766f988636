package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BackendBinary is the renderer the engine script wraps.
const BackendBinary = "linux-wallpaperengine"

// CheckBackendForScript reports the renderer binary the engine script will
// execute. A build next to the script (a sibling build directory, then the
// script's own directory) wins over PATH.
func CheckBackendForScript(script string) Status {
	result := Status{
		Name:        "linux-wallpaperengine",
		Description: "Renderer started by the engine script",
	}

	if script = strings.TrimSpace(script); script != "" {
		for _, candidate := range backendCandidates(script) {
			if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if path, err := exec.LookPath(BackendBinary); err == nil {
		result.Command = path
		result.Available = true
		return result
	}

	result.Command = BackendBinary
	result.Detail = fmt.Sprintf("binary %q not found", BackendBinary)
	return result
}

func backendCandidates(script string) []string {
	dir := filepath.Dir(script)
	return []string{
		filepath.Join(dir, "..", "build", BackendBinary),
		filepath.Join(dir, BackendBinary),
	}
}
