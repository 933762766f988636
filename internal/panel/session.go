package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"lwectl/internal/engine"
	"lwectl/internal/gallery"
	"lwectl/internal/groups"
	"lwectl/internal/keys"
	"lwectl/internal/logging"
	"lwectl/internal/modes"
	"lwectl/internal/state"
)

// ErrNoDirectory is returned by actions that need a media root when none is set.
var ErrNoDirectory = errors.New("no media directory selected")

// Engine is the part of the orchestrator the panel drives.
type Engine interface {
	Run(ctx context.Context, opts engine.RunOptions) (engine.Result, error)
	ApplyItem(ctx context.Context, id string, opts engine.RunOptions) (engine.Result, error)
	Halt(ctx context.Context)
	State() engine.State
}

// Session holds the panel's listing and selection. Keybinding handlers run
// on their own goroutines, so every field behind mu is read through methods.
type Session struct {
	ctx    context.Context
	state  *state.Handle
	engine Engine
	groups *groups.Registry
	logger *slog.Logger
	pick   func(n int) int

	mu       sync.Mutex
	view     gallery.View
	items    []string
	selected string
	status   string
}

// NewSession builds a session over the flat listing.
func NewSession(ctx context.Context, handle *state.Handle, eng Engine, reg *groups.Registry, logger *slog.Logger) *Session {
	return &Session{
		ctx:    ctx,
		state:  handle,
		engine: eng,
		groups: reg,
		logger: logging.NewComponentLogger(logger, "panel"),
		pick:   rand.IntN,
		view:   gallery.All,
	}
}

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	View     gallery.View
	Items    []string
	Selected string
	Status   string
	Engine   engine.State
	Config   *state.Config
}

// Snapshot returns the current listing, selection and settings.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		View:     s.view,
		Items:    slices.Clone(s.items),
		Selected: s.selected,
		Status:   s.status,
	}
	s.mu.Unlock()
	snap.Config = s.state.Snapshot()
	if s.engine != nil {
		snap.Engine = s.engine.State()
	}
	return snap
}

// Refresh re-reads the saved settings and the media root for the current
// view. The selection is kept when it is still listed.
func (s *Session) Refresh() error {
	s.state.Reload()
	cfg := s.state.Snapshot()
	s.mu.Lock()
	view := s.view
	s.mu.Unlock()

	var items []string
	if root := cfg.Dir(); root != "" {
		listed, err := gallery.List(root, view, cfg)
		if err != nil {
			s.setStatus(err.Error())
			return err
		}
		items = listed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	if !slices.Contains(items, s.selected) {
		s.selected = ""
		if len(items) > 0 {
			s.selected = items[0]
		}
	}
	return nil
}

// SetView switches the listing and refreshes it.
func (s *Session) SetView(view gallery.View) error {
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
	return s.Refresh()
}

// CycleView steps all, favorites, then each group in name order.
func (s *Session) CycleView() error {
	views := []gallery.View{gallery.All, {Kind: gallery.ViewFavorites}}
	for _, name := range s.groups.Names() {
		views = append(views, gallery.View{Kind: gallery.ViewGroup, Group: name})
	}
	s.mu.Lock()
	current := s.view
	s.mu.Unlock()
	next := views[0]
	for i, v := range views {
		if v == current {
			next = views[(i+1)%len(views)]
			break
		}
	}
	if err := s.SetView(next); err != nil {
		return err
	}
	s.setStatus("view: " + next.String())
	return nil
}

// Move shifts the selection by delta, wrapping at either end.
func (s *Session) Move(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id string
	var ok bool
	if delta < 0 {
		id, ok = gallery.Previous(s.items, s.selected)
	} else {
		id, ok = gallery.Next(s.items, s.selected)
	}
	if ok {
		s.selected = id
	}
}

// Select marks id as selected when it is listed.
func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.items, id) {
		return false
	}
	s.selected = id
	return true
}

func (s *Session) setStatus(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
}

func (s *Session) runOptions() engine.RunOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return engine.RunOptions{Items: slices.Clone(s.items), View: s.view.String()}
}

func (s *Session) requireDir() (*state.Config, error) {
	s.state.Reload()
	cfg := s.state.Snapshot()
	if cfg.Directory == nil {
		s.setStatus(ErrNoDirectory.Error())
		logging.WarnWithContext(s.logger, "action needs a media directory", "panel_no_directory",
			logging.String(logging.FieldErrorHint, "run 'lwectl dir <path>'"),
		)
		return nil, ErrNoDirectory
	}
	return cfg, nil
}

// RunCurrent launches the engine with the current settings.
func (s *Session) RunCurrent() error {
	if _, err := s.requireDir(); err != nil {
		return err
	}
	res, err := s.engine.Run(s.ctx, s.runOptions())
	return s.report("run", res, err)
}

// Stop halts the engine.
func (s *Session) Stop() error {
	s.engine.Halt(s.ctx)
	s.setStatus("engine stopped")
	return nil
}

// ApplySelected runs the engine on the selected item.
func (s *Session) ApplySelected() error {
	if _, err := s.requireDir(); err != nil {
		return err
	}
	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == "" {
		s.setStatus("nothing selected")
		return errors.New("nothing selected")
	}
	res, err := s.engine.ApplyItem(s.ctx, id, s.runOptions())
	return s.report("apply "+id, res, err)
}

// ApplyRandom picks one item from the flat listing and runs it.
func (s *Session) ApplyRandom() error {
	cfg, err := s.requireDir()
	if err != nil {
		return err
	}
	all, err := gallery.List(cfg.Dir(), gallery.All, cfg)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		s.setStatus("no wallpapers found")
		return nil
	}
	id := all[s.pick(len(all))]
	s.logger.Info("randomly selected item", logging.String(logging.FieldItemID, id))
	res, err := s.engine.ApplyItem(s.ctx, id, engine.RunOptions{Items: all, View: modes.FlatView})
	s.mu.Lock()
	if slices.Contains(s.items, id) {
		s.selected = id
	}
	s.mu.Unlock()
	return s.report("apply "+id, res, err)
}

func (s *Session) report(what string, res engine.Result, err error) error {
	switch {
	case err != nil:
		s.setStatus(fmt.Sprintf("%s failed: %v", what, err))
		return err
	case !res.Launched:
		s.setStatus(what + ": nothing to run")
	default:
		s.setStatus(fmt.Sprintf("%s: pid %d", what, res.PID))
	}
	return nil
}

// ToggleRandom flips random rotation and saves. The engine is not restarted.
func (s *Session) ToggleRandom() error {
	var on bool
	err := s.state.Update(func(cfg *state.Config) {
		on = !cfg.Random
		modes.SetRandom(cfg, on)
	})
	s.setStatus("random mode: " + onOff(on))
	return err
}

// ToggleDelay flips timed rotation and saves.
func (s *Session) ToggleDelay() error {
	var on bool
	var modeErr error
	err := s.state.Update(func(cfg *state.Config) {
		on = !cfg.Delay.Active
		modeErr = modes.SetDelay(cfg, on, nil)
	})
	s.setStatus("delay mode: " + onOff(on))
	return errors.Join(modeErr, err)
}

// ToggleWindow flips windowed rendering and saves.
func (s *Session) ToggleWindow() error {
	var on bool
	var modeErr error
	err := s.state.Update(func(cfg *state.Config) {
		on = !cfg.Window.Active
		modeErr = modes.SetWindow(cfg, on, "")
	})
	s.setStatus("window mode: " + onOff(on))
	return errors.Join(modeErr, err)
}

// ToggleAbove flips the above-windows flag and saves.
func (s *Session) ToggleAbove() error {
	var on bool
	err := s.state.Update(func(cfg *state.Config) {
		on = !cfg.Above
		modes.SetAbove(cfg, on)
	})
	s.setStatus("above: " + onOff(on))
	return err
}

// ToggleFavorite flips the selected item's favorite flag.
func (s *Session) ToggleFavorite() error {
	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	on, err := s.groups.ToggleFavorite(id)
	if err != nil {
		return err
	}
	s.setStatus(fmt.Sprintf("favorite %s: %s", id, onOff(on)))
	return nil
}

// FlagNotWorking adds the selected item to the reserved group; flagged items
// are deleted when the panel exits.
func (s *Session) FlagNotWorking() error {
	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	if err := s.groups.AddTo(state.ReservedGroup, id); err != nil {
		return err
	}
	s.setStatus(fmt.Sprintf("%s flagged %q", id, state.ReservedGroup))
	return nil
}

// Bind registers a handler for every keybinding action.
func (s *Session) Bind(d *keys.Dispatcher) {
	d.Handle(keys.ActionRun, s.RunCurrent)
	d.Handle(keys.ActionStop, s.Stop)
	d.Handle(keys.ActionSetWallpaper, s.ApplySelected)
	d.Handle(keys.ActionSelectRandom, s.ApplyRandom)
	d.Handle(keys.ActionToggleRandom, s.ToggleRandom)
	d.Handle(keys.ActionToggleDelay, s.ToggleDelay)
	d.Handle(keys.ActionToggleWindow, s.ToggleWindow)
	d.Handle(keys.ActionToggleAbove, s.ToggleAbove)
	d.Handle(keys.ActionNextWallpaper, func() error { s.Move(1); return nil })
	d.Handle(keys.ActionPrevWallpaper, func() error { s.Move(-1); return nil })
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
