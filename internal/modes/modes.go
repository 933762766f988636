// Package modes holds the transition rules between the mutually exclusive
// display modes (random, delay, set) and the derived fields that follow them.
// Every function mutates the passed document only; none persist.
package modes

import (
	"fmt"
	"strconv"
	"strings"

	"lwectl/internal/state"
)

// Mode names the settled primary display mode.
type Mode string

const (
	ModeSet    Mode = "set"
	ModeRandom Mode = "random"
	ModeDelay  Mode = "delay"
)

// FlatView is the gallery view that lists every item; only it feeds the pool.
const FlatView = "all"

// SetRandom toggles random rotation. Turning it on clears delay.
func SetRandom(cfg *state.Config, active bool) {
	cfg.Random = active
	if active {
		cfg.Delay.Active = false
	}
	DeriveSet(cfg)
}

// SetDelay toggles timed rotation and optionally replaces the timer. Turning
// it on clears random. timer must be a non-negative integer string when given.
func SetDelay(cfg *state.Config, active bool, timer *string) error {
	if timer != nil {
		normalized, err := ParseTimer(*timer)
		if err != nil {
			return err
		}
		cfg.Delay.Timer = normalized
	}
	cfg.Delay.Active = active
	if active {
		cfg.Random = false
	}
	DeriveSet(cfg)
	return nil
}

// SubmitTimer applies a timer entry: "0" selects random rotation, any other
// value selects timed rotation with that interval.
func SubmitTimer(cfg *state.Config, value string) error {
	normalized, err := ParseTimer(value)
	if err != nil {
		return err
	}
	if normalized == "0" {
		cfg.Delay.Timer = "0"
		SetRandom(cfg, true)
		return nil
	}
	return SetDelay(cfg, true, &normalized)
}

// ParseTimer validates a delay interval in seconds.
func ParseTimer(value string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return "", fmt.Errorf("delay timer %q must be a non-negative integer", value)
	}
	return strconv.Itoa(n), nil
}

// DeriveSet recomputes the explicit-item flag. With random or delay active the
// explicit item is cleared; otherwise the set mode is active and an empty item
// falls back to the media root's basename.
func DeriveSet(cfg *state.Config) {
	if cfg.Random || cfg.Delay.Active {
		cfg.Set.Active = false
		cfg.Set.ItemID = ""
		return
	}
	cfg.Set.Active = true
	if cfg.Set.ItemID == "" {
		cfg.Set.ItemID = cfg.DirBase()
	}
}

// SelectItem makes id the explicit item and clears both rotation modes.
func SelectItem(cfg *state.Config, id string) {
	cfg.Random = false
	cfg.Delay.Active = false
	cfg.Set.Active = true
	cfg.Set.ItemID = strings.TrimSpace(id)
}

// Normalize settles an arbitrary document: delay wins over random when both
// are set, then the explicit item is derived.
func Normalize(cfg *state.Config) {
	if cfg.Random && cfg.Delay.Active {
		cfg.Random = false
	}
	DeriveSet(cfg)
}

// Active reports the settled primary mode.
func Active(cfg *state.Config) Mode {
	switch {
	case cfg.Delay.Active:
		return ModeDelay
	case cfg.Random:
		return ModeRandom
	default:
		return ModeSet
	}
}

// SetWindow toggles windowed rendering. A non-empty resolution must be a preset.
func SetWindow(cfg *state.Config, active bool, resolution string) error {
	if resolution != "" {
		if !state.ValidResolution(resolution) {
			return fmt.Errorf("resolution %q is not one of %s", resolution, strings.Join(state.Resolutions, ", "))
		}
		cfg.Window.Resolution = resolution
	}
	cfg.Window.Active = active
	return nil
}

// SetAbove toggles the engine's above-windows flag.
func SetAbove(cfg *state.Config, active bool) {
	cfg.Above = active
}

// SetDirectory replaces the media root and re-derives the explicit item from it.
func SetDirectory(cfg *state.Config, dir string) {
	previous := cfg.DirBase()
	cfg.SetDir(dir)
	if cfg.Set.ItemID == previous {
		cfg.Set.ItemID = ""
	}
	Normalize(cfg)
}

// UpdatePool captures the rotation candidates. The pool holds items only when
// the flat listing is shown and random or delay is active; otherwise it is
// emptied.
func UpdatePool(cfg *state.Config, items []string, view string) {
	if view != FlatView || !(cfg.Random || cfg.Delay.Active) {
		cfg.Pool = []string{}
		return
	}
	cfg.Pool = append([]string{}, items...)
}
