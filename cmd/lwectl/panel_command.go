package main

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"lwectl/internal/keys"
	"lwectl/internal/logging"
	"lwectl/internal/panel"
)

const panelLogCapacity = 512

func newPanelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Open the interactive control panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return errors.New("panel requires an interactive terminal")
			}
			hub := logging.NewStreamHub(panelLogCapacity)
			return ctx.withRuntime(cmd, runtimeOptions{Quiet: true, Hub: hub}, func(rt *runtime) error {
				orch := rt.openEngine(cmd.Context(), true)
				session := panel.NewSession(cmd.Context(), rt.handle, orch, rt.groups, rt.logger)
				dispatcher := keys.NewDispatcher(rt.bindings(), rt.logger)
				return panel.Run(cmd.Context(), panel.Options{
					Session:       session,
					Dispatcher:    dispatcher,
					Groups:        rt.groups,
					Hub:           hub,
					WatchDebounce: rt.cfg.WatchDebounce(),
					EngineLog:     engineOutputPath(rt.cfg),
					Logger:        rt.logger,
				})
			})
		},
	}
}
