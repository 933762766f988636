// Package deps locates the external programs lwectl drives: the renderer
// behind the engine script and the service manager used for run-at-startup.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement names a program and how to find it. A Command containing a
// slash is checked as a file; anything else is looked up on PATH.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement. Command holds the
// resolved path when Available.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves every requirement, in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, resolve(req))
	}
	return results
}

func resolve(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	switch {
	case cmd == "":
		status.Detail = "command not configured"
	case strings.Contains(cmd, "/"):
		info, err := os.Stat(cmd)
		switch {
		case err != nil:
			status.Detail = fmt.Sprintf("%s does not exist", cmd)
		case !isExecutable(info):
			status.Detail = fmt.Sprintf("%s is not executable", cmd)
		default:
			status.Available = true
		}
	default:
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("%q not found on PATH", cmd)
			break
		}
		status.Command = path
		status.Available = true
	}
	return status
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
