package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lwectl/internal/keys"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage panel keybindings",
	}

	keysCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List keybindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				out := cmd.OutOrStdout()
				var rows [][]string
				for _, b := range rt.bindings().Bindings() {
					rows = append(rows, []string{b.String(), string(b.Action), yesNo(b.Enabled), b.Description})
				}
				fmt.Fprintln(out, renderTable(tableSpec{
					headers:  []string{"Chord", "Action", "Enabled", "Description"},
					colorize: shouldColorize(out),
					empty:    "No keybindings (run 'lwectl keys reset' to restore the defaults)",
				}, rows))
				return nil
			})
		},
	})

	var description string
	var disabled bool
	addCmd := &cobra.Command{
		Use:   "add <chord> <action>",
		Short: "Bind a chord such as ctrl+alt+r to an action",
		Long:  "Actions: " + actionList(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, argv []string) error {
			key, mods, err := keys.ParseChord(argv[0])
			if err != nil {
				return err
			}
			action, err := keys.ParseAction(argv[1])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				reg := rt.bindings()
				b := keys.Binding{Key: key, Modifiers: mods, Action: action, Enabled: !disabled, Description: description}
				if !reg.Add(b) {
					return fmt.Errorf("%w: %s", keys.ErrDuplicate, keys.FormatChord(key, mods))
				}
				if err := rt.saveBindings(reg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bound %s to %s\n", keys.FormatChord(key, mods), action)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&description, "description", "", "Text shown by 'keys list'")
	addCmd.Flags().BoolVar(&disabled, "disabled", false, "Add the binding switched off")
	keysCmd.AddCommand(addCmd)

	keysCmd.AddCommand(&cobra.Command{
		Use:   "remove <chord>",
		Short: "Remove a keybinding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctx.editBinding(cmd, argv[0], "Removed", func(reg *keys.Registry, key string, mods []keys.Modifier) error {
				if !reg.Remove(key, mods) {
					return keys.ErrNotFound
				}
				return nil
			})
		},
	})

	for _, enable := range []bool{true, false} {
		use, verb := "disable <chord>", "Disabled"
		if enable {
			use, verb = "enable <chord>", "Enabled"
		}
		keysCmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: verb + " a keybinding without removing it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, argv []string) error {
				return ctx.editBinding(cmd, argv[0], verb, func(reg *keys.Registry, key string, mods []keys.Modifier) error {
					return reg.SetEnabled(key, mods, enable)
				})
			},
		})
	}

	keysCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default keybindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
				reg := rt.bindings()
				reg.Reset()
				if err := rt.saveBindings(reg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d default keybindings\n", len(reg.Bindings()))
				return nil
			})
		},
	})

	return keysCmd
}

func (c *commandContext) editBinding(cmd *cobra.Command, chord, verb string, fn func(*keys.Registry, string, []keys.Modifier) error) error {
	key, mods, err := keys.ParseChord(chord)
	if err != nil {
		return err
	}
	return c.withRuntime(cmd, runtimeOptions{}, func(rt *runtime) error {
		reg := rt.bindings()
		if err := fn(reg, key, mods); err != nil {
			if errors.Is(err, keys.ErrNotFound) {
				return fmt.Errorf("no binding for %s", keys.FormatChord(key, mods))
			}
			return err
		}
		if err := rt.saveBindings(reg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, keys.FormatChord(key, mods))
		return nil
	})
}

func actionList() string {
	names := make([]string, len(keys.Actions))
	for i, a := range keys.Actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
