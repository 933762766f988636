package panel

import (
	"strings"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"

	"lwectl/internal/keys"
)

var modifierPrefixes = []struct {
	prefix string
	mod    keys.Modifier
}{
	{"alt+", keys.ModAlt},
	{"ctrl+", keys.ModCtrl},
	{"shift+", keys.ModShift},
}

// Translate turns a terminal key event into the (key, modifiers) pair the
// keybinding registry matches on. Pasted text never translates.
func Translate(msg tea.KeyMsg) (string, []keys.Modifier, bool) {
	if msg.Paste {
		return "", nil, false
	}
	s := msg.String()
	var mods []keys.Modifier
	for stripped := true; stripped; {
		stripped = false
		for _, p := range modifierPrefixes {
			if rest, ok := strings.CutPrefix(s, p.prefix); ok && rest != "" {
				mods = append(mods, p.mod)
				s = rest
				stripped = true
			}
		}
	}
	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if r := msg.Runes[0]; unicode.IsUpper(r) {
			mods = append(mods, keys.ModShift)
			s = string(unicode.ToLower(r))
		}
	}
	if s == "" {
		return "", nil, false
	}
	return keys.NormalizeKey(s), keys.NormalizeModifiers(mods), true
}
