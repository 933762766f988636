package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lwectl/internal/args"
	"lwectl/internal/config"
	"lwectl/internal/modes"
	"lwectl/internal/state"
)

func newSettingsCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newModeCommand(ctx),
		newWindowCommand(ctx),
		newAboveCommand(ctx),
		newDirCommand(ctx),
		newSoundCommand(ctx),
	}
}

// updateState applies fn to the saved settings and prints summary.
func (c *commandContext) updateState(cmd *cobra.Command, fn func(cfg *state.Config) error, summary func(cfg *state.Config) string) error {
	return c.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
		var fnErr error
		saveErr := rt.handle.Update(func(cfg *state.Config) { fnErr = fn(cfg) })
		if fnErr != nil {
			return fnErr
		}
		if saveErr != nil {
			return fmt.Errorf("save state: %w", saveErr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary(rt.handle.Snapshot()))
		return nil
	})
}

func modeSummary(cfg *state.Config) string {
	switch modes.Active(cfg) {
	case modes.ModeDelay:
		return fmt.Sprintf("Mode: delay (every %ss)", cfg.Delay.Timer)
	case modes.ModeRandom:
		return "Mode: random"
	default:
		if cfg.Set.ItemID == "" {
			return "Mode: set (no item chosen)"
		}
		return "Mode: set " + cfg.Set.ItemID
	}
}

func newModeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Choose how the engine picks wallpapers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "random",
		Short: "Rotate through the pool at random",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.updateState(cmd, func(cfg *state.Config) error {
				modes.SetRandom(cfg, true)
				return nil
			}, modeSummary)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delay <seconds>",
		Short: "Rotate through the pool every N seconds (0 selects random)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.updateState(cmd, func(cfg *state.Config) error {
				return modes.SubmitTimer(cfg, argv[0])
			}, modeSummary)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set [item-id]",
		Short: "Show one item; without an id the current item is kept",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.updateState(cmd, func(cfg *state.Config) error {
				if len(argv) == 1 {
					modes.SelectItem(cfg, argv[0])
					return nil
				}
				return setOff(cfg)
			}, modeSummary)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "off",
		Short: "Turn random and delay rotation off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.updateState(cmd, setOff, modeSummary)
		},
	})
	return cmd
}

func setOff(cfg *state.Config) error {
	modes.SetRandom(cfg, false)
	return modes.SetDelay(cfg, false, nil)
}

func newWindowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "window on|off [resolution]",
		Short: "Render in a window instead of the desktop",
		Long:  "Resolutions are LxTxWxH presets: " + strings.Join(state.Resolutions, ", "),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, argv []string) error {
			active, err := parseOnOff(argv[0])
			if err != nil {
				return err
			}
			res := ""
			if len(argv) == 2 {
				res = strings.TrimSpace(argv[1])
			}
			return ctx.updateState(cmd, func(cfg *state.Config) error {
				return modes.SetWindow(cfg, active, res)
			}, func(cfg *state.Config) string {
				return fmt.Sprintf("Window: %s (%s)", onOff(cfg.Window.Active), cfg.Window.Resolution)
			})
		},
	}
}

func newAboveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "above on|off",
		Short: "Keep the wallpaper above other windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			active, err := parseOnOff(argv[0])
			if err != nil {
				return err
			}
			return ctx.updateState(cmd, func(cfg *state.Config) error {
				modes.SetAbove(cfg, active)
				return nil
			}, func(cfg *state.Config) string {
				return "Above: " + onOff(cfg.Above)
			})
		},
	}
}

func newDirCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dir <path>",
		Short: "Choose the media directory holding wallpaper items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			dir, err := config.ExpandPath(strings.TrimSpace(argv[0]))
			if err != nil {
				return err
			}
			if err := args.ValidateDirectory(dir); err != nil {
				return fmt.Errorf("%s: %w", dir, err)
			}
			return ctx.updateState(cmd, func(cfg *state.Config) error {
				modes.SetDirectory(cfg, dir)
				return nil
			}, func(cfg *state.Config) string {
				return "Directory: " + cfg.Dir()
			})
		},
	}
}

func newSoundCommand(ctx *commandContext) *cobra.Command {
	var (
		silent, noAutoMute, noAudioProcessing bool
		volume                                int
		clearVolume                           bool
	)
	cmd := &cobra.Command{
		Use:   "sound",
		Short: "Set the engine's audio flags; only the flags given are changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("volume") && (volume < 0 || volume > 100) {
				return fmt.Errorf("%w: %d", state.ErrVolumeRange, volume)
			}
			if flags.Changed("volume") && clearVolume {
				return errors.New("--volume and --clear-volume are mutually exclusive")
			}
			return ctx.updateState(cmd, func(cfg *state.Config) error {
				if flags.Changed("silent") {
					cfg.Sound.Silent = silent
				}
				if flags.Changed("noautomute") {
					cfg.Sound.NoAutoMute = noAutoMute
				}
				if flags.Changed("no-audio-processing") {
					cfg.Sound.NoAudioProcessing = noAudioProcessing
				}
				switch {
				case flags.Changed("volume"):
					cfg.Sound.Volume = state.IntVolume(volume)
				case clearVolume:
					cfg.Sound.Volume = nil
				}
				return nil
			}, func(cfg *state.Config) string {
				return "Sound: " + soundSummary(cfg.Sound)
			})
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "Mute the wallpaper")
	cmd.Flags().BoolVar(&noAutoMute, "noautomute", false, "Keep playing sound while other apps play audio")
	cmd.Flags().BoolVar(&noAudioProcessing, "no-audio-processing", false, "Disable audio-reactive effects")
	cmd.Flags().IntVar(&volume, "volume", 0, "Volume 0-100")
	cmd.Flags().BoolVar(&clearVolume, "clear-volume", false, "Use the engine's default volume")
	return cmd
}
