package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lwectl/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var pruneDays int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent engine launches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				store, err := history.Open(cmd.Context(), rt.cfg.HistoryPath())
				if err != nil {
					return err
				}
				defer store.Close()

				out := cmd.OutOrStdout()
				if pruneDays > 0 {
					removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -pruneDays))
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Pruned %d launches older than %d days\n", removed, pruneDays)
				}

				launches, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(launches))
				for _, l := range launches {
					rows = append(rows, historyRow(l))
				}
				fmt.Fprintln(out, renderTable(tableSpec{
					headers:  []string{"Started", "Run", "Mode", "Item", "PID", "Outcome", "Exit", "Duration"},
					aligns:   []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
					colorize: shouldColorize(out),
					empty:    "No launches recorded",
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of launches to show")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete launches older than this many days first")
	return cmd
}

func historyRow(l history.Launch) []string {
	runID := l.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	pid := ""
	if l.PID > 0 {
		pid = strconv.Itoa(l.PID)
	}
	exit := ""
	if l.ExitCode != nil {
		exit = strconv.Itoa(*l.ExitCode)
	}
	duration := ""
	if l.FinishedAt != nil {
		duration = l.FinishedAt.Sub(l.StartedAt).Round(time.Second).String()
	}
	outcome := string(l.Outcome)
	if l.Detail != "" {
		outcome += ": " + strings.TrimSpace(l.Detail)
	}
	return []string{
		l.StartedAt.Local().Format("2006-01-02 15:04:05"),
		runID,
		l.Mode,
		l.ItemID,
		pid,
		outcome,
		exit,
		duration,
	}
}
