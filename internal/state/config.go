package state

import (
	"path/filepath"
	"slices"
)

// ReservedGroup flags items for deletion on the next purge.
const ReservedGroup = "not working"

// DefaultResolution means "let the engine pick".
const DefaultResolution = "0x0x0x0"

// Resolutions lists the window geometry presets, encoded as LxTxWxH.
var Resolutions = []string{
	"0x0x0x0",
	"0x0x800x600",
	"0x0x1024x768",
	"0x0x1280x720",
	"0x0x1366x768",
	"0x0x1920x1080",
	"0x0x2560x1440",
	"0x0x3840x2160",
}

// ValidResolution reports whether res is one of the presets.
func ValidResolution(res string) bool {
	return slices.Contains(Resolutions, res)
}

// Window is windowed (non-desktop) rendering with a fixed geometry.
type Window struct {
	Active     bool   `json:"active"`
	Resolution string `json:"res"`
}

// Delay rotates through the pool every Timer seconds.
type Delay struct {
	Active bool   `json:"active"`
	Timer  string `json:"timer"`
}

// Set shows one explicit item.
type Set struct {
	Active bool   `json:"active"`
	ItemID string `json:"wallpaper"`
}

// Sound holds audio flags passed through to the engine.
type Sound struct {
	Silent            bool    `json:"silent"`
	NoAutoMute        bool    `json:"noautomute"`
	NoAudioProcessing bool    `json:"no_audio_processing"`
	Volume            *Volume `json:"volume,omitempty"`
}

// Any reports whether at least one sound flag is set.
func (s Sound) Any() bool {
	return s.Silent || s.NoAutoMute || s.NoAudioProcessing || s.Volume != nil
}

// BindingRecord is the persisted form of one keybinding.
type BindingRecord struct {
	Key         string   `json:"key"`
	Action      string   `json:"action"`
	Modifiers   []string `json:"modifiers"`
	Enabled     bool     `json:"enabled"`
	Description string   `json:"description,omitempty"`
}

// Keybindings wraps the persisted binding list.
type Keybindings struct {
	Bindings []BindingRecord `json:"bindings"`

	skipped int
}

// Config is the wallpaper state document.
type Config struct {
	RunAtStartup bool                `json:"__run_at_startup__"`
	Window       Window              `json:"--window"`
	Directory    *string             `json:"--dir"`
	Above        bool                `json:"--above"`
	Delay        Delay               `json:"--delay"`
	Random       bool                `json:"--random"`
	Set          Set                 `json:"--set"`
	Sound        Sound               `json:"--sound"`
	Favorites    []string            `json:"--favorites"`
	Groups       map[string][]string `json:"--groups"`
	Pool         []string            `json:"--pool"`
	Keybindings  Keybindings         `json:"--keybindings"`
	ShowLogs     bool                `json:"--show-logs"`

	// unknown holds keys read from disk that this schema does not define.
	unknown map[string]any
}

// Default returns a fresh state document.
func Default() *Config {
	return &Config{
		Window:      Window{Resolution: DefaultResolution},
		Delay:       Delay{Timer: "0"},
		Favorites:   []string{},
		Groups:      map[string][]string{ReservedGroup: {}},
		Pool:        []string{},
		Keybindings: Keybindings{Bindings: DefaultBindings()},
		ShowLogs:    true,
	}
}

// DefaultBindings returns the chords seeded into a fresh document.
func DefaultBindings() []BindingRecord {
	ctrlAlt := []string{"ctrl", "alt"}
	return []BindingRecord{
		{Key: "r", Action: "run_current_config", Modifiers: ctrlAlt, Enabled: true, Description: "Run current configuration"},
		{Key: "s", Action: "stop_engine", Modifiers: ctrlAlt, Enabled: true, Description: "Stop wallpaper engine"},
		{Key: "w", Action: "set_wallpaper", Modifiers: ctrlAlt, Enabled: true, Description: "Set selected wallpaper"},
		{Key: "d", Action: "select_random", Modifiers: ctrlAlt, Enabled: true, Description: "Select random wallpaper"},
		{Key: "n", Action: "next_wallpaper", Modifiers: []string{"super"}, Enabled: true, Description: "Next wallpaper"},
		{Key: "p", Action: "previous_wallpaper", Modifiers: []string{"super"}, Enabled: true, Description: "Previous wallpaper"},
	}
}

// Dir returns the media root or "" when none is chosen.
func (c *Config) Dir() string {
	if c == nil || c.Directory == nil {
		return ""
	}
	return *c.Directory
}

// DirBase returns the basename of the media root, or "" when none is chosen.
func (c *Config) DirBase() string {
	dir := c.Dir()
	if dir == "" {
		return ""
	}
	return filepath.Base(filepath.Clean(dir))
}

// SetDir replaces the media root; an empty path clears it.
func (c *Config) SetDir(dir string) {
	if dir == "" {
		c.Directory = nil
		return
	}
	c.Directory = &dir
}

// Clone returns a deep copy; snapshots handed to other goroutines must be clones.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.Directory != nil {
		dir := *c.Directory
		out.Directory = &dir
	}
	if c.Sound.Volume != nil {
		v := *c.Sound.Volume
		out.Sound.Volume = &v
	}
	out.Favorites = slices.Clone(c.Favorites)
	out.Pool = slices.Clone(c.Pool)
	if c.Groups != nil {
		out.Groups = make(map[string][]string, len(c.Groups))
		for name, ids := range c.Groups {
			out.Groups[name] = slices.Clone(ids)
		}
	}
	out.Keybindings.Bindings = make([]BindingRecord, len(c.Keybindings.Bindings))
	for i, b := range c.Keybindings.Bindings {
		b.Modifiers = slices.Clone(b.Modifiers)
		out.Keybindings.Bindings[i] = b
	}
	if c.unknown != nil {
		out.unknown = deepCopyMap(c.unknown)
	}
	return &out
}

// Unknown returns a copy of the keys read from disk that the schema does not define.
func (c *Config) Unknown() map[string]any {
	if c == nil || c.unknown == nil {
		return nil
	}
	return deepCopyMap(c.unknown)
}
