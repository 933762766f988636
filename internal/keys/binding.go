package keys

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Action names a controller operation a chord can trigger.
type Action string

const (
	ActionRun           Action = "run_current_config"
	ActionStop          Action = "stop_engine"
	ActionSetWallpaper  Action = "set_wallpaper"
	ActionSelectRandom  Action = "select_random"
	ActionToggleRandom  Action = "toggle_random_mode"
	ActionToggleDelay   Action = "toggle_delay_mode"
	ActionToggleWindow  Action = "toggle_window_mode"
	ActionToggleAbove   Action = "toggle_above"
	ActionNextWallpaper Action = "next_wallpaper"
	ActionPrevWallpaper Action = "previous_wallpaper"
)

// Actions lists every known action in display order.
var Actions = []Action{
	ActionRun, ActionStop, ActionSetWallpaper, ActionSelectRandom,
	ActionToggleRandom, ActionToggleDelay, ActionToggleWindow, ActionToggleAbove,
	ActionNextWallpaper, ActionPrevWallpaper,
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.TrimSpace(strings.ToLower(s)))
	if !slices.Contains(Actions, a) {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Modifier is a held modifier key.
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModAlt   Modifier = "alt"
	ModShift Modifier = "shift"
	ModSuper Modifier = "super"
)

var modifierOrder = []Modifier{ModCtrl, ModAlt, ModShift, ModSuper}

var modifierAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"meta":    ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"win":     ModSuper,
	"cmd":     ModSuper,
}

// ParseModifier accepts the canonical names and common aliases.
func ParseModifier(s string) (Modifier, error) {
	m, ok := modifierAliases[strings.TrimSpace(strings.ToLower(s))]
	if !ok {
		return "", fmt.Errorf("unknown modifier %q", s)
	}
	return m, nil
}

// NormalizeModifiers returns the set in canonical order without duplicates.
func NormalizeModifiers(mods []Modifier) []Modifier {
	out := make([]Modifier, 0, len(mods))
	for _, m := range modifierOrder {
		if slices.Contains(mods, m) {
			out = append(out, m)
		}
	}
	return out
}

var keyAliases = map[string]string{
	"return": "enter",
	"escape": "esc",
	"bksp":   "backspace",
	"del":    "delete",
	"pgup":   "pageup",
	"pgdown": "pagedown",
	"pgdn":   "pagedown",
}

// NormalizeKey lowercases key and folds common aliases so "Return" and
// "enter" compare equal.
func NormalizeKey(key string) string {
	if key == " " {
		return "space"
	}
	k := strings.ToLower(strings.TrimSpace(key))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// Binding maps one chord to an action.
type Binding struct {
	Key         string
	Modifiers   []Modifier
	Action      Action
	Enabled     bool
	Description string
}

// Chord reports whether b is bound to key with exactly mods held.
func (b Binding) Chord(key string, mods []Modifier) bool {
	return b.Key == NormalizeKey(key) && slices.Equal(b.Modifiers, NormalizeModifiers(mods))
}

func (b Binding) normalized() Binding {
	b.Key = NormalizeKey(b.Key)
	b.Modifiers = NormalizeModifiers(b.Modifiers)
	return b
}

var titler = cases.Title(language.Und)

var keyDisplay = map[string]string{
	"enter":     "Enter",
	"esc":       "Esc",
	"space":     "Space",
	"backspace": "Backspace",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
}

// String renders the chord for display, for example "Ctrl+Alt+R".
func (b Binding) String() string {
	return FormatChord(b.Key, b.Modifiers)
}

// FormatChord renders key and mods the way bindings are shown to users.
func FormatChord(key string, mods []Modifier) string {
	parts := make([]string, 0, len(mods)+1)
	for _, m := range NormalizeModifiers(mods) {
		parts = append(parts, titler.String(string(m)))
	}
	k := NormalizeKey(key)
	switch {
	case keyDisplay[k] != "":
		k = keyDisplay[k]
	case len([]rune(k)) == 1:
		k = strings.ToUpper(k)
	default:
		k = titler.String(k)
	}
	return strings.Join(append(parts, k), "+")
}

// ParseChord reads a chord written as "ctrl+alt+r". The last segment is the key.
func ParseChord(s string) (string, []Modifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, fmt.Errorf("empty chord")
	}
	if s == "+" {
		return "+", nil, nil
	}
	segments := strings.Split(s, "+")
	// "ctrl++" binds the plus key.
	if strings.HasSuffix(s, "++") {
		segments = append(segments[:len(segments)-2], "+")
	}
	key := segments[len(segments)-1]
	if strings.TrimSpace(key) == "" {
		return "", nil, fmt.Errorf("chord %q has no key", s)
	}
	var mods []Modifier
	for _, seg := range segments[:len(segments)-1] {
		m, err := ParseModifier(seg)
		if err != nil {
			return "", nil, fmt.Errorf("chord %q: %w", s, err)
		}
		mods = append(mods, m)
	}
	return NormalizeKey(key), NormalizeModifiers(mods), nil
}
