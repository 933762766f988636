package preflight

import (
	"lwectl/internal/config"
	"lwectl/internal/state"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every check for the controller settings and the saved
// wallpaper state.
func RunAll(cfg *config.Config, st *state.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	exe, err := cfg.EngineExecutable()
	if err != nil {
		results = append(results, Result{Name: "Engine script", Detail: err.Error()})
	} else {
		results = append(results, CheckEngineExecutable(exe))
	}
	results = append(results, CheckSystemDeps(exe)...)

	if st != nil {
		results = append(results, CheckMediaDirectory(st.Dir()))
	}
	results = append(results, CheckDisplay())
	return results
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
