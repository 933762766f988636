// Package groups maintains favorites, named groups and the reserved
// pending-delete group. Every mutation persists through the state handle.
package groups

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"lwectl/internal/logging"
	"lwectl/internal/state"
)

// ErrReservedGroup is returned when deleting or renaming the reserved group.
var ErrReservedGroup = errors.New("reserved group cannot be deleted")

// ErrUnknownGroup reports a group that does not exist.
var ErrUnknownGroup = errors.New("group does not exist")

// Registry edits membership sets inside the shared state document.
type Registry struct {
	state  *state.Handle
	logger *slog.Logger
}

// New returns a registry over handle.
func New(handle *state.Handle, logger *slog.Logger) *Registry {
	handle.View(func(cfg *state.Config) {
		if cfg.Groups == nil {
			cfg.Groups = map[string][]string{}
		}
		if _, ok := cfg.Groups[state.ReservedGroup]; !ok {
			cfg.Groups[state.ReservedGroup] = []string{}
		}
	})
	return &Registry{state: handle, logger: logging.NewComponentLogger(logger, "groups")}
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// ToggleFavorite flips id's favorite flag and reports the new value.
func (r *Registry) ToggleFavorite(id string) (bool, error) {
	id = normalizeID(id)
	if id == "" {
		return false, errors.New("item id is required")
	}
	var now bool
	err := r.state.Update(func(cfg *state.Config) {
		if i := slices.Index(cfg.Favorites, id); i >= 0 {
			cfg.Favorites = slices.Delete(cfg.Favorites, i, i+1)
			return
		}
		cfg.Favorites = append(cfg.Favorites, id)
		now = true
	})
	r.logger.Info("favorite toggled", logging.String(logging.FieldItemID, id), logging.Bool("favorite", now))
	return now, err
}

// IsFavorite reports whether id is a favorite.
func (r *Registry) IsFavorite(id string) bool {
	id = normalizeID(id)
	var ok bool
	r.state.View(func(cfg *state.Config) { ok = slices.Contains(cfg.Favorites, id) })
	return ok
}

// Favorites returns the favorite ids in insertion order.
func (r *Registry) Favorites() []string {
	var out []string
	r.state.View(func(cfg *state.Config) { out = slices.Clone(cfg.Favorites) })
	return out
}

// Create adds an empty group. Creating an existing group is a no-op.
func (r *Registry) Create(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("group name is required")
	}
	existed := false
	err := r.state.Update(func(cfg *state.Config) {
		if _, ok := cfg.Groups[name]; ok {
			existed = true
			return
		}
		cfg.Groups[name] = []string{}
	})
	if existed {
		r.logger.Info("group already exists", logging.String("group", name))
		return nil
	}
	r.logger.Info("group created", logging.String("group", name))
	return err
}

// AddTo puts id in group, creating the group when needed. Re-adding is a no-op.
func (r *Registry) AddTo(group, id string) error {
	group = strings.TrimSpace(group)
	id = normalizeID(id)
	if group == "" || id == "" {
		return errors.New("group name and item id are required")
	}
	already := false
	err := r.state.Update(func(cfg *state.Config) {
		members := cfg.Groups[group]
		if slices.Contains(members, id) {
			already = true
			return
		}
		cfg.Groups[group] = append(members, id)
	})
	if already {
		r.logger.Info("item already in group", logging.String("group", group), logging.String(logging.FieldItemID, id))
		return nil
	}
	r.logger.Info("item added to group", logging.String("group", group), logging.String(logging.FieldItemID, id))
	return err
}

// RemoveFrom drops id from group. Removing an absent id is a no-op.
func (r *Registry) RemoveFrom(group, id string) error {
	group = strings.TrimSpace(group)
	id = normalizeID(id)
	missing := false
	err := r.state.Update(func(cfg *state.Config) {
		members, ok := cfg.Groups[group]
		i := slices.Index(members, id)
		if !ok || i < 0 {
			missing = true
			return
		}
		cfg.Groups[group] = slices.Delete(members, i, i+1)
	})
	if missing {
		r.logger.Info("item not in group", logging.String("group", group), logging.String(logging.FieldItemID, id))
		return nil
	}
	r.logger.Info("item removed from group", logging.String("group", group), logging.String(logging.FieldItemID, id))
	return err
}

// InGroup reports whether id belongs to group.
func (r *Registry) InGroup(group, id string) bool {
	var ok bool
	r.state.View(func(cfg *state.Config) { ok = slices.Contains(cfg.Groups[strings.TrimSpace(group)], normalizeID(id)) })
	return ok
}

// Members returns a copy of group's ids.
func (r *Registry) Members(group string) ([]string, error) {
	var (
		out []string
		ok  bool
	)
	r.state.View(func(cfg *state.Config) {
		var members []string
		members, ok = cfg.Groups[strings.TrimSpace(group)]
		out = slices.Clone(members)
	})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Delete removes a group. Deleting a missing group is a no-op; the reserved
// group cannot be deleted.
func (r *Registry) Delete(group string) error {
	group = strings.TrimSpace(group)
	if group == state.ReservedGroup {
		return ErrReservedGroup
	}
	missing := false
	err := r.state.Update(func(cfg *state.Config) {
		if _, ok := cfg.Groups[group]; !ok {
			missing = true
			return
		}
		delete(cfg.Groups, group)
	})
	if missing {
		r.logger.Info("group not found", logging.String("group", group))
		return nil
	}
	r.logger.Info("group deleted", logging.String("group", group))
	return err
}

// Names lists the groups, reserved group first, the rest sorted.
func (r *Registry) Names() []string {
	var names []string
	r.state.View(func(cfg *state.Config) {
		for name := range cfg.Groups {
			if name != state.ReservedGroup {
				names = append(names, name)
			}
		}
	})
	sort.Strings(names)
	return append([]string{state.ReservedGroup}, names...)
}

// PurgeResult summarizes one reserved-group sweep.
type PurgeResult struct {
	Removed []string
	Missing []string
	Failed  map[string]error
}

// Total is the number of ids the sweep considered.
func (p PurgeResult) Total() int {
	return len(p.Removed) + len(p.Missing) + len(p.Failed)
}

// PurgeReserved deletes every item directory listed in the reserved group
// beneath rootDir, then clears the group and persists. Missing directories
// and removal failures are logged, not returned; only the final save can fail.
func (r *Registry) PurgeReserved(rootDir string) (PurgeResult, error) {
	result := PurgeResult{Failed: map[string]error{}}
	var pending []string
	r.state.View(func(cfg *state.Config) { pending = slices.Clone(cfg.Groups[state.ReservedGroup]) })
	if len(pending) == 0 {
		return result, nil
	}
	if root := strings.TrimSpace(rootDir); root == "" {
		logging.WarnWithContext(r.logger, "purge skipped: no media directory", "purge_no_root",
			logging.Int("pending", len(pending)),
			logging.String(logging.FieldErrorHint, "choose a wallpaper directory first"),
			logging.String(logging.FieldImpact, "items stay flagged until the next purge"),
		)
		return result, nil
	}

	r.logger.Info("purging reserved group", logging.String("group", state.ReservedGroup), logging.Int("pending", len(pending)))
	root := filepath.Clean(rootDir)
	for _, id := range pending {
		target, ok := itemPath(root, id)
		if !ok {
			result.Failed[id] = fmt.Errorf("item id %q escapes %s", id, root)
			logging.WarnWithContext(r.logger, "purge entry rejected", "purge_invalid_id",
				logging.String(logging.FieldItemID, id),
				logging.String(logging.FieldErrorHint, "remove the entry from the group by hand"),
			)
			continue
		}
		if _, err := os.Lstat(target); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				result.Missing = append(result.Missing, id)
				r.logger.Info("purge entry missing", logging.String(logging.FieldItemID, id), logging.String("path", target))
				continue
			}
			result.Failed[id] = err
			logging.WarnWithContext(r.logger, "purge entry unreadable", "purge_failed",
				logging.String(logging.FieldItemID, id), logging.Error(err))
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			result.Failed[id] = err
			logging.WarnWithContext(r.logger, "purge entry not removed", "purge_failed",
				logging.String(logging.FieldItemID, id),
				logging.String("path", target),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the item directory"),
				logging.String(logging.FieldImpact, "item remains on disk"),
			)
			continue
		}
		result.Removed = append(result.Removed, id)
		r.logger.Info("purge entry removed", logging.String(logging.FieldItemID, id))
	}

	err := r.state.Update(func(cfg *state.Config) {
		cfg.Groups[state.ReservedGroup] = []string{}
		drop := func(list []string) []string {
			return slices.DeleteFunc(list, func(id string) bool { return slices.Contains(result.Removed, id) })
		}
		cfg.Favorites = drop(cfg.Favorites)
		cfg.Pool = drop(cfg.Pool)
		for name, members := range cfg.Groups {
			cfg.Groups[name] = drop(members)
		}
	})
	r.logger.Info(fmt.Sprintf("deletion complete %d/%d", len(result.Removed), result.Total()),
		logging.Int("removed", len(result.Removed)),
		logging.Int("missing", len(result.Missing)),
		logging.Int("failed", len(result.Failed)),
	)
	return result, err
}

// itemPath joins id to root and refuses ids that resolve outside it.
func itemPath(root, id string) (string, bool) {
	if id == "" || id == "." || id == ".." || strings.ContainsRune(id, filepath.Separator) {
		return "", false
	}
	return filepath.Join(root, id), true
}
