package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrEngineNotFound is returned when no backend executable can be located.
var ErrEngineNotFound = errors.New("engine executable not found")

// Paths contains file and directory locations.
type Paths struct {
	StateFile string `toml:"state_file"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
}

// Engine describes the backend executable the controller supervises.
type Engine struct {
	Executable         string `toml:"executable"`
	WorkingDir         string `toml:"working_dir"`
	StopTimeoutSeconds int    `toml:"stop_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	FileMaxKiB    int    `toml:"file_max_kib"`
	MirrorFile    bool   `toml:"mirror_file"`
}

// Startup configures the login service unit.
type Startup struct {
	ServiceName string `toml:"service_name"`
	UnitDir     string `toml:"unit_dir"`
	Handler     string `toml:"handler"`
}

// Watch configures the display hotplug watcher.
type Watch struct {
	DebounceMS int    `toml:"debounce_ms"`
	Subsystem  string `toml:"subsystem"`
}

// Config encapsulates all controller settings.
//
// Configuration sections:
//   - Paths: state document, data directory, log directory
//   - Engine: backend executable and graceful stop timeout
//   - Logging: log format, level, file mirror, and retention
//   - Startup: systemd user unit used for launch at login
//   - Watch: display hotplug re-launch behaviour
type Config struct {
	Paths   Paths   `toml:"paths"`
	Engine  Engine  `toml:"engine"`
	Logging Logging `toml:"logging"`
	Startup Startup `toml:"startup"`
	Watch   Watch   `toml:"watch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(configHome(), "lwectl", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lwectl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.StateFile)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StopTimeout returns the bounded wait for a graceful backend stop.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Engine.StopTimeoutSeconds) * time.Second
}

// WatchDebounce returns the hotplug debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// LockPath is the cross-process lock guarding the engine slot.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "engine.lock")
}

// SlotPath is the file recording the currently tracked backend launch.
func (c *Config) SlotPath() string {
	return filepath.Join(c.Paths.DataDir, "engine.slot")
}

// HistoryPath is the sqlite database holding launch history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LogFilePath is the diagnostic log mirrored to disk.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "lwectl.log")
}

// UnitPath is the full path of the systemd user unit.
func (c *Config) UnitPath() string {
	return filepath.Join(c.Startup.UnitDir, c.Startup.ServiceName)
}

// EngineExecutable resolves the backend executable. An explicit engine.executable
// wins; otherwise LWE_SCRIPT_DIR, the directory next to the running binary, and
// the flatpak install location are tried in that order.
func (c *Config) EngineExecutable() (string, error) {
	if exe := strings.TrimSpace(c.Engine.Executable); exe != "" {
		return exe, nil
	}
	candidates := engineCandidates()
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrEngineNotFound, strings.Join(candidates, ", "))
}

func engineCandidates() []string {
	var out []string
	if dir, ok := os.LookupEnv("LWE_SCRIPT_DIR"); ok && strings.TrimSpace(dir) != "" {
		out = append(out, filepath.Join(dir, defaultEngineScript))
	}
	if self, err := os.Executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(self), "..", "share", "lwectl", defaultEngineScript))
	}
	return append(out, filepath.Join(flatpakEngineDir, defaultEngineScript))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func configHome() string {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return base
	}
	return "~/.config"
}

func defaultStateFile() string {
	return filepath.Join(configHome(), "lwectl", "state.json")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
