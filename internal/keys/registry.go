// Package keys matches observed key chords against the configured bindings
// and dispatches the bound actions off the input loop.
package keys

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"lwectl/internal/logging"
	"lwectl/internal/state"
)

// ErrDuplicate is returned when a chord is already bound.
var ErrDuplicate = errors.New("chord already bound")

// ErrNotFound is returned when no binding uses a chord.
var ErrNotFound = errors.New("no binding for chord")

// Registry is the ordered list of bindings. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	bindings []Binding
	logger   *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logging.NewComponentLogger(logger, "keys")}
}

// Defaults returns the bindings seeded into a fresh document.
func Defaults() []Binding {
	out, _ := fromRecords(state.DefaultBindings())
	return out
}

// FromRecords builds a registry from persisted bindings. Unknown actions,
// unknown modifiers and duplicate chords are skipped with a warning.
func FromRecords(records []state.BindingRecord, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	bindings, problems := fromRecords(records)
	for _, p := range problems {
		logging.WarnWithContext(r.logger, "keybinding skipped", "keybinding_invalid",
			logging.Error(p),
			logging.String(logging.FieldErrorHint, "fix the binding with 'lwectl keys'"),
			logging.String(logging.FieldImpact, "chord does nothing"),
		)
	}
	for _, b := range bindings {
		r.Add(b)
	}
	return r
}

func fromRecords(records []state.BindingRecord) ([]Binding, []error) {
	var (
		out      []Binding
		problems []error
	)
	for _, rec := range records {
		action, err := ParseAction(rec.Action)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		mods := make([]Modifier, 0, len(rec.Modifiers))
		var modErr error
		for _, name := range rec.Modifiers {
			m, err := ParseModifier(name)
			if err != nil {
				modErr = fmt.Errorf("binding %s: %w", rec.Key, err)
				break
			}
			mods = append(mods, m)
		}
		if modErr != nil {
			problems = append(problems, modErr)
			continue
		}
		out = append(out, Binding{
			Key:         rec.Key,
			Modifiers:   mods,
			Action:      action,
			Enabled:     rec.Enabled,
			Description: rec.Description,
		}.normalized())
	}
	return out, problems
}

// Records returns the bindings in their persisted form.
func (r *Registry) Records() []state.BindingRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]state.BindingRecord, 0, len(r.bindings))
	for _, b := range r.bindings {
		mods := make([]string, 0, len(b.Modifiers))
		for _, m := range b.Modifiers {
			mods = append(mods, string(m))
		}
		out = append(out, state.BindingRecord{
			Key:         b.Key,
			Action:      string(b.Action),
			Modifiers:   mods,
			Enabled:     b.Enabled,
			Description: b.Description,
		})
	}
	return out
}

// Bindings returns a copy of the list in order.
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, len(r.bindings))
	for i, b := range r.bindings {
		b.Modifiers = slices.Clone(b.Modifiers)
		out[i] = b
	}
	return out
}

func (r *Registry) indexLocked(key string, mods []Modifier) int {
	return slices.IndexFunc(r.bindings, func(b Binding) bool { return b.Chord(key, mods) })
}

// Add appends b unless its chord is already bound, enabled or not and
// whatever the action. Duplicates are reported and ignored.
func (r *Registry) Add(b Binding) bool {
	b = b.normalized()
	if b.Key == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(b.Key, b.Modifiers); i >= 0 {
		r.logger.Info("keybinding not added: chord already bound",
			logging.String("chord", b.String()),
			logging.String("existing_action", string(r.bindings[i].Action)),
			logging.String("action", string(b.Action)),
		)
		return false
	}
	r.bindings = append(r.bindings, b)
	return true
}

// Remove drops the binding for the chord.
func (r *Registry) Remove(key string, mods []Modifier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(key, mods)
	if i < 0 {
		return false
	}
	r.bindings = slices.Delete(r.bindings, i, i+1)
	return true
}

// Replace swaps the binding at the old chord for b, keeping its position.
// The new chord may equal the old one but must not collide with another binding.
func (r *Registry) Replace(oldKey string, oldMods []Modifier, b Binding) error {
	b = b.normalized()
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(oldKey, oldMods)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, FormatChord(oldKey, oldMods))
	}
	if j := r.indexLocked(b.Key, b.Modifiers); j >= 0 && j != i {
		return fmt.Errorf("%w: %s", ErrDuplicate, b.String())
	}
	r.bindings[i] = b
	return nil
}

// SetEnabled toggles the binding for the chord without removing it.
func (r *Registry) SetEnabled(key string, mods []Modifier, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(key, mods)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, FormatChord(key, mods))
	}
	r.bindings[i].Enabled = enabled
	return nil
}

// Match returns the action bound to the chord among enabled bindings. The
// modifier set must match exactly.
func (r *Registry) Match(key string, mods []Modifier) (Action, bool) {
	key = NormalizeKey(key)
	mods = NormalizeModifiers(mods)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bindings {
		if b.Enabled && b.Key == key && slices.Equal(b.Modifiers, mods) {
			return b.Action, true
		}
	}
	return "", false
}

// Reset replaces every binding with the defaults.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = Defaults()
}
