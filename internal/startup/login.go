package startup

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"lwectl/internal/engine"
	"lwectl/internal/logging"
	"lwectl/internal/modes"
	"lwectl/internal/state"
)

// SetEnabled asks svc to enable or disable the login hook and records the
// outcome in the state document only when the service manager agreed.
func SetEnabled(handle *state.Handle, svc Service, enabled bool, logger *slog.Logger) (bool, string) {
	logger = logging.NewComponentLogger(logger, "startup")
	var (
		ok  bool
		msg string
	)
	if enabled {
		ok, msg = svc.Enable()
	} else {
		ok, msg = svc.Disable()
	}
	if !ok {
		logging.WarnWithContext(logger, msg, "startup_toggle_failed",
			logging.Bool("enable", enabled),
			logging.String(logging.FieldErrorHint, "check 'systemctl --user status' for details"),
			logging.String(logging.FieldImpact, "login behaviour unchanged"),
		)
		return false, msg
	}
	logger.Info(msg, logging.Bool("enable", enabled))
	if err := handle.Update(func(cfg *state.Config) { cfg.RunAtStartup = enabled }); err != nil {
		return true, msg + " (state not saved: " + err.Error() + ")"
	}
	return true, msg
}

// Sync mirrors the service manager's view into the state flag and reports
// whether it changed.
func Sync(handle *state.Handle, svc Service) (bool, error) {
	enabled := svc.IsEnabled()
	changed := false
	var err error
	handle.View(func(cfg *state.Config) { changed = cfg.RunAtStartup != enabled })
	if changed {
		err = handle.Update(func(cfg *state.Config) { cfg.RunAtStartup = enabled })
	}
	return changed, err
}

// Launcher runs the backend.
type Launcher interface {
	Run(ctx context.Context, opts engine.RunOptions) (engine.Result, error)
	Wait()
}

// RunAtLogin is the service unit's entry point. It restores the saved
// wallpaper when the run-at-startup flag is set and waits for the backend's
// attached output to finish.
func RunAtLogin(ctx context.Context, handle *state.Handle, launcher Launcher, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "startup")
	logger.Info("[STARTUP] login hook started", logging.String("user", os.Getenv("USER")))

	for _, key := range []string{"DISPLAY", "XAUTHORITY"} {
		if os.Getenv(key) == "" {
			logging.WarnWithContext(logger, "[STARTUP] "+key+" is not set; continuing anyway", "startup_env_missing",
				logging.String("variable", key),
				logging.String(logging.FieldErrorHint, "import the graphical session environment into systemd --user"),
				logging.String(logging.FieldImpact, "the engine may fail to open a display"),
			)
		}
	}

	cfg := handle.Snapshot()
	if !cfg.RunAtStartup {
		logger.Info("[STARTUP] run at startup is disabled; exiting")
		return nil
	}

	delayTimer := ""
	if cfg.Delay.Active {
		delayTimer = cfg.Delay.Timer
	}
	logger.Info("[STARTUP] configuration loaded",
		logging.String("dir", cfg.Dir()),
		logging.Bool("window", cfg.Window.Active),
		logging.Bool("above", cfg.Above),
		logging.String("mode", string(modes.Active(cfg))),
		logging.String("delay_seconds", delayTimer),
		logging.String("item", cfg.Set.ItemID),
		logging.Bool("silent", cfg.Sound.Silent),
		logging.String("pool_size", strconv.Itoa(len(cfg.Pool))),
	)

	res, err := launcher.Run(ctx, engine.RunOptions{})
	if err != nil {
		return err
	}
	if !res.Launched {
		logging.WarnWithContext(logger, "[STARTUP] no valid arguments to run", "startup_nothing_to_run",
			logging.String(logging.FieldErrorHint, "configure a valid wallpaper directory"),
			logging.String(logging.FieldImpact, "no wallpaper at login"),
		)
		return nil
	}
	launcher.Wait()
	logger.Info("[STARTUP] login hook finished", logging.String(logging.FieldRunID, res.RunID))
	return nil
}
