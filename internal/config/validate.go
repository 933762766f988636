package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateStartup(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateFile) == "" {
		return errors.New("paths.state_file must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.StopTimeoutSeconds < 0 {
		return errors.New("engine.stop_timeout_seconds must be positive")
	}
	if c.Engine.StopTimeoutSeconds > 300 {
		return fmt.Errorf("engine.stop_timeout_seconds %d exceeds 300", c.Engine.StopTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateStartup() error {
	if !strings.HasSuffix(c.Startup.ServiceName, ".service") {
		return fmt.Errorf("startup.service_name %q must end in .service", c.Startup.ServiceName)
	}
	if strings.ContainsAny(c.Startup.ServiceName, "/ ") {
		return fmt.Errorf("startup.service_name %q must be a bare unit name", c.Startup.ServiceName)
	}
	return nil
}
