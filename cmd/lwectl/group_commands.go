package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lwectl/internal/groups"
	"lwectl/internal/state"
)

func newFavoriteCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fav [item-id]",
		Short: "Toggle an item's favorite flag, or list favorites",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				out := cmd.OutOrStdout()
				if len(argv) == 0 {
					favs := rt.groups.Favorites()
					if len(favs) == 0 {
						fmt.Fprintln(out, "No favorites")
						return nil
					}
					fmt.Fprintln(out, strings.Join(favs, "\n"))
					return nil
				}
				on, err := rt.groups.ToggleFavorite(argv[0])
				if err != nil {
					return err
				}
				if on {
					fmt.Fprintf(out, "Added %s to favorites\n", strings.TrimSpace(argv[0]))
				} else {
					fmt.Fprintf(out, "Removed %s from favorites\n", strings.TrimSpace(argv[0]))
				}
				return nil
			})
		},
	}
	return cmd
}

func newGroupCommand(ctx *commandContext) *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage named item groups",
	}

	groupCmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				if err := rt.groups.Create(argv[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created group %q\n", strings.TrimSpace(argv[0]))
				return nil
			})
		},
	})

	groupCmd.AddCommand(&cobra.Command{
		Use:   "add <name> <item-id>...",
		Short: "Add items to a group, creating it when needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				for _, id := range argv[1:] {
					if err := rt.groups.AddTo(argv[0], id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Group %q now has %d items\n", argv[0], memberCount(rt.groups, argv[0]))
				return nil
			})
		},
	})

	groupCmd.AddCommand(&cobra.Command{
		Use:   "remove <name> <item-id>...",
		Short: "Remove items from a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				for _, id := range argv[1:] {
					if err := rt.groups.RemoveFrom(argv[0], id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Group %q now has %d items\n", argv[0], memberCount(rt.groups, argv[0]))
				return nil
			})
		},
	})

	groupCmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a group (the items are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				if err := rt.groups.Delete(argv[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %q\n", strings.TrimSpace(argv[0]))
				return nil
			})
		},
	})

	groupCmd.AddCommand(&cobra.Command{
		Use:   "list [name]",
		Short: "List groups, or the members of one group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				out := cmd.OutOrStdout()
				if len(argv) == 1 {
					members, err := rt.groups.Members(argv[0])
					if err != nil {
						return err
					}
					sort.Strings(members)
					rows := make([][]string, 0, len(members))
					for _, id := range members {
						rows = append(rows, []string{id, yesNo(rt.groups.IsFavorite(id))})
					}
					fmt.Fprintln(out, renderTable(tableSpec{
						headers:  []string{"Item", "Favorite"},
						colorize: shouldColorize(out),
						empty:    fmt.Sprintf("Group %q is empty", argv[0]),
					}, rows))
					return nil
				}
				var rows [][]string
				for _, name := range rt.groups.Names() {
					note := ""
					if name == state.ReservedGroup {
						note = "deleted on next run"
					}
					rows = append(rows, []string{name, strconv.Itoa(memberCount(rt.groups, name)), note})
				}
				fmt.Fprintln(out, renderTable(tableSpec{
					headers:  []string{"Group", "Items", "Note"},
					aligns:   []columnAlignment{alignLeft, alignRight, alignLeft},
					colorize: shouldColorize(out),
				}, rows))
				return nil
			})
		},
	})

	groupCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: fmt.Sprintf("Delete every item in the %q group from disk", state.ReservedGroup),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				result, err := rt.groups.PurgeReserved(rt.handle.Snapshot().Dir())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if result.Total() == 0 {
					fmt.Fprintln(out, "Nothing to purge")
					return nil
				}
				fmt.Fprintf(out, "Removed %d of %d items (%d already missing, %d failed)\n",
					len(result.Removed), result.Total(), len(result.Missing), len(result.Failed))
				for id, ferr := range result.Failed {
					fmt.Fprintf(out, "  %s: %v\n", id, ferr)
				}
				return nil
			})
		},
	})

	return groupCmd
}

func memberCount(reg *groups.Registry, name string) int {
	members, err := reg.Members(name)
	if err != nil {
		return 0
	}
	return len(members)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
