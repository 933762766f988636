// Package gallery lists the wallpaper items under a media root. An item is a
// subdirectory holding a preview image; its directory name is the item id.
package gallery

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"lwectl/internal/state"
)

// PreviewNames are the preview files that mark a directory as an item.
var PreviewNames = []string{"preview.jpg", "preview.png", "preview.gif"}

// View selects which items are listed.
type View struct {
	Kind  ViewKind
	Group string
}

// ViewKind names a listing mode.
type ViewKind string

const (
	ViewAll       ViewKind = "all"
	ViewFavorites ViewKind = "favorites"
	ViewGroup     ViewKind = "group"
)

// All is the flat listing; only it feeds the rotation pool.
var All = View{Kind: ViewAll}

// String renders the view the way ParseView reads it.
func (v View) String() string {
	if v.Kind == ViewGroup {
		return "group:" + v.Group
	}
	if v.Kind == "" {
		return string(ViewAll)
	}
	return string(v.Kind)
}

// ParseView reads "all", "favorites" or "group:<name>".
func ParseView(s string) (View, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == string(ViewAll):
		return All, nil
	case s == string(ViewFavorites):
		return View{Kind: ViewFavorites}, nil
	case strings.HasPrefix(s, "group:"):
		name := strings.TrimSpace(strings.TrimPrefix(s, "group:"))
		if name == "" {
			return View{}, fmt.Errorf("view %q names no group", s)
		}
		return View{Kind: ViewGroup, Group: name}, nil
	}
	return View{}, fmt.Errorf("unknown view %q (want all, favorites or group:<name>)", s)
}

// Item is one listed wallpaper.
type Item struct {
	ID      string
	Dir     string
	Preview string
}

// Scan returns every item under root sorted by id.
func Scan(root string) ([]Item, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read media root: %w", err)
	}
	var items []Item
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if preview := findPreview(dir); preview != "" {
			items = append(items, Item{ID: entry.Name(), Dir: dir, Preview: preview})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func findPreview(dir string) string {
	for _, name := range PreviewNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// List returns the ids visible in view. Favorites and group views keep the
// sorted order of the listing and skip ids whose directory is gone.
func List(root string, view View, cfg *state.Config) ([]string, error) {
	items, err := Scan(root)
	if err != nil {
		return nil, err
	}
	var keep func(id string) bool
	switch view.Kind {
	case ViewFavorites:
		keep = func(id string) bool { return slices.Contains(cfg.Favorites, id) }
	case ViewGroup:
		members, ok := cfg.Groups[view.Group]
		if !ok {
			return nil, fmt.Errorf("group %q does not exist", view.Group)
		}
		keep = func(id string) bool { return slices.Contains(members, id) }
	default:
		keep = func(string) bool { return true }
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if keep(item.ID) {
			ids = append(ids, item.ID)
		}
	}
	return ids, nil
}

// Next returns the item after current, wrapping at the end. An unknown
// current starts at the first item.
func Next(items []string, current string) (string, bool) {
	return step(items, current, 1)
}

// Previous returns the item before current, wrapping at the start.
func Previous(items []string, current string) (string, bool) {
	return step(items, current, -1)
}

func step(items []string, current string, delta int) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	i := slices.Index(items, current)
	if i < 0 {
		if delta > 0 {
			return items[0], true
		}
		return items[len(items)-1], true
	}
	n := len(items)
	return items[((i+delta)%n+n)%n], true
}
