package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lwectl/internal/gallery"
	"lwectl/internal/hotplug"
	"lwectl/internal/logging"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags launchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Restart the engine when displays change",
		Long: "Stay in the foreground and restart the engine with the saved settings\n" +
			"whenever a display is connected, removed or reconfigured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				runCtx := cmd.Context()
				orch := rt.openEngine(runCtx, true)
				restart := func(ctx context.Context) error {
					// Settings may have changed in another lwectl since the last restart.
					rt.handle.Reload()
					opts, err := flags.runOptions(rt)
					if err != nil {
						return err
					}
					_, err = orch.Run(ctx, opts)
					return err
				}

				monitor := hotplug.New(rt.cfg.Watch.Subsystem, rt.cfg.WatchDebounce(), rt.logger, restart)
				if err := monitor.Start(runCtx); err != nil {
					return err
				}
				defer monitor.Stop()

				if root := rt.handle.Snapshot().Dir(); root != "" {
					go func() {
						err := gallery.Watch(runCtx, root, rt.cfg.WatchDebounce(), rt.logger, func() {
							rt.logger.Info("media directory changed", logging.String("dir", root))
						})
						if err != nil && !errors.Is(err, context.Canceled) {
							rt.logger.Debug("media directory watch stopped", logging.Error(err))
						}
					}()
				}

				if !monitor.Running() {
					fmt.Fprintln(cmd.ErrOrStderr(), "Display events unavailable; waiting for interrupt only")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Watching for display changes (Ctrl+C to exit)")
				}
				<-runCtx.Done()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.view, "view", "all", "Listing that feeds the rotation pool (all, favorites, group:<name>)")
	return cmd
}
