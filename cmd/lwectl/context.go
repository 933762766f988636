package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lwectl/internal/config"
	"lwectl/internal/engine"
	"lwectl/internal/groups"
	"lwectl/internal/history"
	"lwectl/internal/keys"
	"lwectl/internal/logging"
	"lwectl/internal/state"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// runtimeOptions selects how much of the controller a command needs.
type runtimeOptions struct {
	// Quiet drops console logging (the panel owns the terminal).
	Quiet bool
	Hub   *logging.StreamHub
}

// runtime is the controller assembled for one command invocation.
type runtime struct {
	cfg        *config.Config
	configPath string
	log        *logging.Logger
	logger     *slog.Logger
	store      *state.Store
	handle     *state.Handle
	groups     *groups.Registry
	history    *history.Store
	engine     *engine.Orchestrator
}

func (c *commandContext) openRuntime(cmd *cobra.Command, opts runtimeOptions) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var console io.Writer = cmd.ErrOrStderr()
	log, err := logging.NewFromConfig(cfg, opts.Hub, console)
	if err != nil {
		return nil, err
	}
	if opts.Quiet {
		_ = log.Close()
		log, err = logging.New(logging.Options{
			Level:          cfg.Logging.Level,
			DisableConsole: true,
			FilePath:       mirrorPath(cfg),
			FileMaxBytes:   int64(cfg.Logging.FileMaxKiB) * 1024,
			Hub:            opts.Hub,
		})
		if err != nil {
			return nil, err
		}
	}
	logger := log.Logger
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: "*.log.*",
	})

	store := state.NewStore(cfg.Paths.StateFile, logger)
	handle := state.NewHandle(store.Load(), store, logger)
	configPath := c.configPath()
	if configPath != "" {
		if expanded, err := config.ExpandPath(configPath); err == nil {
			configPath = expanded
		}
	}
	return &runtime{
		cfg:        cfg,
		configPath: configPath,
		log:        log,
		logger:     logger,
		store:      store,
		handle:     handle,
		groups:     groups.New(handle, logger),
	}, nil
}

func mirrorPath(cfg *config.Config) string {
	if !cfg.Logging.MirrorFile {
		return ""
	}
	return cfg.LogFilePath()
}

// withRuntime builds the controller, runs fn and releases everything fn opened.
func (c *commandContext) withRuntime(cmd *cobra.Command, opts runtimeOptions, fn func(*runtime) error) error {
	rt, err := c.openRuntime(cmd, opts)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(rt)
}

// openEngine wires the orchestrator and launch history. Detached launches
// outlive this process; their output goes to engine.log.
func (rt *runtime) openEngine(ctx context.Context, detached bool) *engine.Orchestrator {
	if rt.engine != nil {
		return rt.engine
	}
	exe, err := rt.cfg.EngineExecutable()
	if err != nil {
		logging.WarnWithContext(rt.logger, "engine executable not found", "engine_not_found",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set engine.executable in config.toml or export LWE_SCRIPT_DIR"),
		)
	} else if expanded, expErr := config.ExpandPath(exe); expErr == nil {
		exe = expanded
	}

	var options []engine.Option
	if store, err := history.Open(ctx, rt.cfg.HistoryPath()); err != nil {
		logging.WarnWithContext(rt.logger, "launch history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String("path", rt.cfg.HistoryPath()),
			logging.String(logging.FieldImpact, "launches are not recorded"),
		)
	} else {
		rt.history = store
		options = append(options, engine.WithRecorder(store))
	}

	rt.engine = engine.New(engine.Options{
		Executable:  exe,
		WorkingDir:  rt.cfg.Engine.WorkingDir,
		StopTimeout: rt.cfg.StopTimeout(),
		LockPath:    rt.cfg.LockPath(),
		SlotPath:    rt.cfg.SlotPath(),
		Detached:    detached,
		OutputPath:  engineOutputPath(rt.cfg),
	}, rt.handle, rt.logger, options...)
	return rt.engine
}

func engineOutputPath(cfg *config.Config) string {
	return strings.TrimSuffix(cfg.LogFilePath(), "lwectl.log") + "engine.log"
}

// bindings loads the keybinding registry from the state document.
func (rt *runtime) bindings() *keys.Registry {
	var records []state.BindingRecord
	rt.handle.View(func(cfg *state.Config) { records = append(records, cfg.Keybindings.Bindings...) })
	return keys.FromRecords(records, rt.logger)
}

// saveBindings writes the registry back into the state document.
func (rt *runtime) saveBindings(reg *keys.Registry) error {
	records := reg.Records()
	return rt.handle.Update(func(cfg *state.Config) { cfg.Keybindings.Bindings = records })
}

func (rt *runtime) close() {
	if rt.engine != nil {
		rt.engine.Wait()
	}
	var errs []error
	if rt.history != nil {
		errs = append(errs, rt.history.Close())
	}
	if err := errors.Join(errs...); err != nil {
		rt.logger.Debug("close history", logging.Error(err))
	}
	_ = rt.log.Close()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}

func parseOnOff(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, errors.New("expected on or off, got " + value)
}
