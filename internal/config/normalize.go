package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	if err := c.normalizeStartup(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeWatch()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateFile) == "" {
		c.Paths.StateFile = defaultStateFile()
	}
	if c.Paths.StateFile, err = expandPath(c.Paths.StateFile); err != nil {
		return fmt.Errorf("paths.state_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngine() error {
	var err error
	c.Engine.Executable = strings.TrimSpace(c.Engine.Executable)
	if strings.HasPrefix(c.Engine.Executable, "~") || strings.Contains(c.Engine.Executable, "/") {
		if c.Engine.Executable, err = expandPath(c.Engine.Executable); err != nil {
			return fmt.Errorf("engine.executable: %w", err)
		}
	}
	if c.Engine.WorkingDir, err = expandPath(strings.TrimSpace(c.Engine.WorkingDir)); err != nil {
		return fmt.Errorf("engine.working_dir: %w", err)
	}
	if c.Engine.StopTimeoutSeconds == 0 {
		c.Engine.StopTimeoutSeconds = defaultStopTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeStartup() error {
	var err error
	c.Startup.ServiceName = strings.TrimSpace(c.Startup.ServiceName)
	if c.Startup.ServiceName == "" {
		c.Startup.ServiceName = defaultServiceName
	}
	if strings.TrimSpace(c.Startup.UnitDir) == "" {
		c.Startup.UnitDir = defaultUnitDir
	}
	if c.Startup.UnitDir, err = expandPath(c.Startup.UnitDir); err != nil {
		return fmt.Errorf("startup.unit_dir: %w", err)
	}
	c.Startup.Handler = strings.TrimSpace(c.Startup.Handler)
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.FileMaxKiB <= 0 {
		c.Logging.FileMaxKiB = defaultLogFileMaxKiB
	}
}

func (c *Config) normalizeWatch() {
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = defaultWatchDebounceMS
	}
	c.Watch.Subsystem = strings.TrimSpace(c.Watch.Subsystem)
	if c.Watch.Subsystem == "" {
		c.Watch.Subsystem = defaultWatchSubsystem
	}
}
