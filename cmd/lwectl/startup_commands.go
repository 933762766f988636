package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lwectl/internal/startup"
)

// startupService builds the systemd user unit whose ExecStart re-enters this
// binary with "startup run".
func (rt *runtime) startupService() *startup.Systemd {
	return startup.NewSystemd(rt.cfg.Startup.ServiceName, rt.cfg.Startup.UnitDir, rt.startupHandler())
}

func (rt *runtime) startupHandler() []string {
	if handler := strings.Fields(rt.cfg.Startup.Handler); len(handler) > 0 {
		return handler
	}
	self, err := os.Executable()
	if err != nil {
		self = "lwectl"
	}
	argv := []string{self}
	if rt.configPath != "" {
		argv = append(argv, "--config", rt.configPath)
	}
	return append(argv, "startup", "run")
}

func newStartupCommand(ctx *commandContext) *cobra.Command {
	startupCmd := &cobra.Command{
		Use:   "startup",
		Short: "Restore the wallpaper when you log in",
	}

	toggle := func(enable bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				ok, msg := startup.SetEnabled(rt.handle, rt.startupService(), enable, rt.logger)
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				if !ok {
					return errors.New("service manager refused the change")
				}
				return nil
			})
		}
	}
	startupCmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Install and enable the login service",
		Args:  cobra.NoArgs,
		RunE:  toggle(true),
	})
	startupCmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable and stop the login service",
		Args:  cobra.NoArgs,
		RunE:  toggle(false),
	})

	var sync bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the login service is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				svc := rt.startupService()
				out := cmd.OutOrStdout()
				if sync {
					changed, err := startup.Sync(rt.handle, svc)
					if err != nil {
						return err
					}
					if changed {
						fmt.Fprintln(out, "Updated saved run-at-startup flag from the service manager")
					}
				}
				enabled := svc.IsEnabled()
				kind := statusInfo
				if enabled {
					kind = statusOK
				}
				report := newStatusReport(out)
				report.add("Service", kind, fmt.Sprintf("%s %s", svc.Name, enabledWord(enabled)))
				report.add("Unit file", statusInfo, svc.UnitPath())
				report.add("Saved flag", statusInfo, onOff(rt.handle.Snapshot().RunAtStartup))
				report.print(out)
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&sync, "sync", false, "Copy the service manager's state into the saved flag")
	startupCmd.AddCommand(statusCmd)

	startupCmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Login entry point used by the service unit",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				purgeReserved(rt)
				return startup.RunAtLogin(cmd.Context(), rt.handle, rt.openEngine(cmd.Context(), false), rt.logger)
			})
		},
	})

	return startupCmd
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
