package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lwectl/internal/args"
	"lwectl/internal/engine"
	"lwectl/internal/gallery"
	"lwectl/internal/logging"
	"lwectl/internal/modes"
	"lwectl/internal/preflight"
	"lwectl/internal/state"
)

func newEngineCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newRunCommand(ctx),
		newStopCommand(ctx),
		newApplyCommand(ctx),
		newStatusCommand(ctx),
	}
}

type launchFlags struct {
	attached bool
	view     string
}

func (f *launchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.attached, "attached", false, "Stay in the foreground and stream engine output until it exits")
	cmd.Flags().StringVar(&f.view, "view", "all", "Listing that feeds the rotation pool (all, favorites, group:<name>)")
}

// runOptions lists the media root in the requested view. Without a media
// root the persisted pool is left untouched.
func (f *launchFlags) runOptions(rt *runtime) (engine.RunOptions, error) {
	view, err := gallery.ParseView(f.view)
	if err != nil {
		return engine.RunOptions{}, err
	}
	cfg := rt.handle.Snapshot()
	if cfg.Dir() == "" || args.ValidateDirectory(cfg.Dir()) != nil {
		return engine.RunOptions{}, nil
	}
	items, err := gallery.List(cfg.Dir(), view, cfg)
	if err != nil {
		return engine.RunOptions{}, err
	}
	return engine.RunOptions{Items: items, View: view.String()}, nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags launchFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the engine with the saved settings",
		Long: "Delete items flagged as not working, stop the running engine and start it\n" +
			"again with the saved settings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				purgeReserved(rt)
				warnPreflight(rt)
				opts, err := flags.runOptions(rt)
				if err != nil {
					return err
				}
				orch := rt.openEngine(cmd.Context(), !flags.attached)
				res, err := orch.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printLaunch(cmd, rt, res)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var flags launchFlags
	cmd := &cobra.Command{
		Use:   "apply <item-id>",
		Short: "Show one wallpaper item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				opts, err := flags.runOptions(rt)
				if err != nil {
					return err
				}
				orch := rt.openEngine(cmd.Context(), !flags.attached)
				res, err := orch.ApplyItem(cmd.Context(), argv[0], opts)
				if err != nil {
					return err
				}
				printLaunch(cmd, rt, res)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func printLaunch(cmd *cobra.Command, rt *runtime, res engine.Result) {
	out := cmd.OutOrStdout()
	if !res.Launched {
		fmt.Fprintln(out, "Nothing to run: choose a valid media directory with 'lwectl dir <path>'")
		return
	}
	fmt.Fprintf(out, "Engine started (pid %d, run %s)\n", res.PID, res.RunID)
	exe, _ := rt.cfg.EngineExecutable()
	fmt.Fprintf(out, "  %s\n", args.Format(exe, res.Args))
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				rt.openEngine(cmd.Context(), true).Halt(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
				return nil
			})
		},
	}
}

func purgeReserved(rt *runtime) {
	result, err := rt.groups.PurgeReserved(rt.handle.Snapshot().Dir())
	if err != nil {
		logging.WarnWithContext(rt.logger, "reserved group purge not saved", "purge_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "deleted items may still be listed in the state file"),
		)
		return
	}
	if result.Total() > 0 {
		rt.logger.Info("removed items flagged as not working", logging.Int("removed", len(result.Removed)))
	}
}

func warnPreflight(rt *runtime) {
	for _, failed := range preflight.Failed(preflight.RunAll(rt.cfg, rt.handle.Snapshot())) {
		logging.WarnWithContext(rt.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "the engine may fail to start"),
		)
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine, settings and environment status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				cfg := rt.handle.Snapshot()
				report := newStatusReport(cmd.OutOrStdout())

				report.section("Engine")
				engineStatus(cmd.Context(), rt, report)
				report.add("Command", statusInfo, commandPreview(rt, cfg))

				report.section("Wallpaper")
				settingsStatus(cfg, report)
				startupStatus(rt, cfg, report)

				report.section("Checks")
				for _, result := range preflight.RunAll(rt.cfg, cfg) {
					report.check(result)
				}

				report.print(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func engineStatus(ctx context.Context, rt *runtime, report *statusReport) {
	slot, ok := rt.openEngine(ctx, true).Current()
	switch {
	case !ok:
		report.add("Backend", statusInfo, "not running")
	case slot.Alive():
		age := time.Since(slot.StartedAt).Round(time.Second)
		report.add("Backend", statusOK, fmt.Sprintf("running (pid %d, up %s)", slot.PID, age))
	default:
		report.add("Backend", statusWarn, fmt.Sprintf("pid %d exited; the engine may have daemonized", slot.PID))
	}
}

func commandPreview(rt *runtime, cfg *state.Config) string {
	argv := args.Build(cfg, logging.NewNop())
	if len(argv) == 0 {
		return "nothing to run"
	}
	exe, err := rt.cfg.EngineExecutable()
	if err != nil {
		exe = "<engine>"
	}
	return args.Format(exe, argv)
}

func settingsStatus(cfg *state.Config, report *statusReport) {
	dir := cfg.Dir()
	if dir == "" {
		report.add("Directory", statusWarn, "not set")
	} else if err := args.ValidateDirectory(dir); err != nil {
		report.add("Directory", statusError, fmt.Sprintf("%s (%v)", dir, err))
	} else {
		report.add("Directory", statusOK, dir)
	}

	mode := modes.Active(cfg)
	detail := string(mode)
	switch mode {
	case modes.ModeDelay:
		detail = fmt.Sprintf("delay every %ss", cfg.Delay.Timer)
	case modes.ModeSet:
		detail = "set " + cfg.Set.ItemID
	}
	report.add("Mode", statusInfo, detail)
	report.add("Pool", statusInfo, strconv.Itoa(len(cfg.Pool))+" items")
	report.add("Window", statusInfo, fmt.Sprintf("%s (%s)", onOff(cfg.Window.Active), cfg.Window.Resolution))
	report.add("Above", statusInfo, onOff(cfg.Above))
	report.add("Sound", statusInfo, soundSummary(cfg.Sound))
}

func soundSummary(s state.Sound) string {
	var parts []string
	if s.Silent {
		parts = append(parts, "silent")
	}
	if s.Volume != nil {
		if v, err := s.Volume.Int(); err == nil {
			parts = append(parts, "volume "+strconv.Itoa(v))
		} else {
			parts = append(parts, "volume invalid")
		}
	}
	if s.NoAutoMute {
		parts = append(parts, "noautomute")
	}
	if s.NoAudioProcessing {
		parts = append(parts, "no audio processing")
	}
	if len(parts) == 0 {
		return "engine defaults"
	}
	return strings.Join(parts, ", ")
}

func startupStatus(rt *runtime, cfg *state.Config, report *statusReport) {
	svc := rt.startupService()
	enabled := svc.IsEnabled()
	switch {
	case enabled == cfg.RunAtStartup && enabled:
		report.add("Run at startup", statusOK, "enabled")
	case enabled == cfg.RunAtStartup:
		report.add("Run at startup", statusInfo, "disabled")
	default:
		report.add("Run at startup", statusWarn,
			fmt.Sprintf("state says %s but the service is %s; run 'lwectl startup status --sync'", onOff(cfg.RunAtStartup), onOff(enabled)))
	}
}
