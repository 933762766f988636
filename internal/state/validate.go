package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// validate repairs semantically invalid values in a decoded document and
// describes each repair.
func (c *Config) validate() []string {
	var issues []string

	if !ValidResolution(c.Window.Resolution) {
		issues = append(issues, fmt.Sprintf("--window.res: %q is not a preset; reset to %s", c.Window.Resolution, DefaultResolution))
		c.Window.Resolution = DefaultResolution
	}

	c.Delay.Timer = strings.TrimSpace(c.Delay.Timer)
	if n, err := strconv.Atoi(c.Delay.Timer); err != nil || n < 0 {
		issues = append(issues, fmt.Sprintf("--delay.timer: %q is not a non-negative integer; reset to 0", c.Delay.Timer))
		c.Delay.Timer = "0"
	} else {
		c.Delay.Timer = strconv.Itoa(n)
	}

	if c.Random && c.Delay.Active {
		issues = append(issues, "--random and --delay both active; keeping --delay")
		c.Random = false
	}

	c.Set.ItemID = strings.TrimSpace(c.Set.ItemID)

	if dir := strings.TrimSpace(c.Dir()); dir == "" {
		c.Directory = nil
	} else {
		expanded := expandHome(dir)
		if info, err := os.Stat(expanded); err != nil || !info.IsDir() {
			issues = append(issues, fmt.Sprintf("--dir: %q is not an existing directory; cleared", dir))
			c.Directory = nil
		} else {
			c.SetDir(expanded)
		}
	}

	c.fillNil()
	if _, ok := c.Groups[ReservedGroup]; !ok {
		c.Groups[ReservedGroup] = []string{}
	}
	if n := c.Keybindings.Skipped(); n > 0 {
		issues = append(issues, fmt.Sprintf("--keybindings: %d unreadable binding(s) skipped", n))
	}
	return issues
}

// fillNil replaces nil collections so the document never persists null lists.
func (c *Config) fillNil() {
	if c.Favorites == nil {
		c.Favorites = []string{}
	}
	if c.Pool == nil {
		c.Pool = []string{}
	}
	if c.Groups == nil {
		c.Groups = map[string][]string{}
	}
	for name, ids := range c.Groups {
		if ids == nil {
			c.Groups[name] = []string{}
		}
	}
	if c.Keybindings.Bindings == nil {
		c.Keybindings.Bindings = []BindingRecord{}
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
