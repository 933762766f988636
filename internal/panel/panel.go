// Package panel is the terminal control panel: the item listing, current
// settings and recent log lines, driven by the keybinding dispatcher.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"lwectl/internal/gallery"
	"lwectl/internal/groups"
	"lwectl/internal/keys"
	"lwectl/internal/logging"
	"lwectl/internal/logs"
)

// Options wires the panel to the rest of the controller.
type Options struct {
	Session       *Session
	Dispatcher    *keys.Dispatcher
	Groups        *groups.Registry
	Hub           *logging.StreamHub
	WatchDebounce time.Duration
	// EngineLog is the output file of detached backends. Lines appended to it
	// while the panel runs are logged, and so reach Hub.
	EngineLog string
	Logger    *slog.Logger
	// ProgramOptions are passed to bubbletea (tests use WithInput/WithOutput).
	ProgramOptions []tea.ProgramOption
}

// Run shows the panel until the user quits, then deletes the items flagged as
// not working.
func Run(ctx context.Context, opts Options) error {
	if opts.Session == nil {
		return errors.New("panel: session is required")
	}
	logger := logging.NewComponentLogger(opts.Logger, "panel")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.Dispatcher != nil {
		opts.Session.Bind(opts.Dispatcher)
	}
	if err := opts.Session.Refresh(); err != nil {
		logger.Warn("initial listing failed", logging.Error(err))
	}

	root := opts.Session.state.Snapshot().Dir()
	if root != "" {
		go func() {
			err := gallery.Watch(ctx, root, opts.WatchDebounce, opts.Logger, func() {
				if err := opts.Session.Refresh(); err != nil {
					logger.Debug("refresh after change failed", logging.Error(err))
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.WarnWithContext(logger, "media directory watch unavailable", "gallery_watch_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "press r to rescan after adding items"),
				)
			}
		}()
	}

	if opts.EngineLog != "" {
		go followEngineLog(ctx, opts.EngineLog, logger)
	}

	programOpts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts.ProgramOptions...)
	program := tea.NewProgram(NewModel(opts.Session, opts.Dispatcher, opts.Hub), programOpts...)
	_, runErr := program.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}
	if opts.Dispatcher != nil {
		opts.Dispatcher.Wait()
	}

	shutdown(opts, root, logger)
	if runErr != nil {
		return fmt.Errorf("panel: %w", runErr)
	}
	return nil
}

func followEngineLog(ctx context.Context, path string, logger *slog.Logger) {
	_, offset, err := logs.Last(path, 0)
	if err == nil {
		err = logs.Follow(ctx, path, offset, func(line string) {
			logger.Info("[BACKEND] "+line, logging.String(logging.FieldStream, "engine_log"))
		})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(logger, "engine output not followed", "engine_log_follow_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "backend output is only in the engine log file"),
		)
	}
}

func shutdown(opts Options, root string, logger *slog.Logger) {
	if opts.Groups == nil {
		return
	}
	if root == "" {
		root = opts.Session.state.Snapshot().Dir()
	}
	if _, err := opts.Groups.PurgeReserved(root); err != nil {
		logging.WarnWithContext(logger, "reserved group purge not saved", "purge_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "deleted items may still be listed in the state file"),
		)
	}
}
