package keys_test

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"lwectl/internal/keys"
	"lwectl/internal/logging"
	"lwectl/internal/state"
)

var ctrlAlt = []keys.Modifier{keys.ModCtrl, keys.ModAlt}

func TestAddRejectsSameChordWithDifferentAction(t *testing.T) {
	reg := keys.NewRegistry(logging.NewNop())
	if !reg.Add(keys.Binding{Key: "r", Modifiers: ctrlAlt, Action: keys.ActionRun, Enabled: true}) {
		t.Fatal("first add rejected")
	}
	dup := keys.Binding{Key: "R", Modifiers: []keys.Modifier{keys.ModAlt, keys.ModCtrl}, Action: keys.ActionStop}
	if reg.Add(dup) {
		t.Fatal("expected duplicate chord rejected regardless of action, order or enabled flag")
	}
	if len(reg.Bindings()) != 1 {
		t.Fatalf("expected one binding, got %d", len(reg.Bindings()))
	}
}

func TestMatchRequiresExactModifierSet(t *testing.T) {
	reg := keys.NewRegistry(nil)
	reg.Add(keys.Binding{Key: "r", Modifiers: ctrlAlt, Action: keys.ActionRun, Enabled: true})
	reg.Add(keys.Binding{Key: "r", Modifiers: []keys.Modifier{keys.ModCtrl}, Action: keys.ActionSelectRandom, Enabled: false})

	if action, ok := reg.Match("r", []keys.Modifier{keys.ModAlt, keys.ModCtrl}); !ok || action != keys.ActionRun {
		t.Fatalf("Match = %q, %v", action, ok)
	}
	if _, ok := reg.Match("r", []keys.Modifier{keys.ModCtrl, keys.ModAlt, keys.ModShift}); ok {
		t.Fatal("superset of modifiers must not match")
	}
	if _, ok := reg.Match("r", []keys.Modifier{keys.ModCtrl}); ok {
		t.Fatal("disabled binding must not match")
	}
	if err := reg.SetEnabled("r", []keys.Modifier{keys.ModCtrl}, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if action, ok := reg.Match("R", []keys.Modifier{keys.ModCtrl}); !ok || action != keys.ActionSelectRandom {
		t.Fatalf("expected enabled binding to match, got %q %v", action, ok)
	}
}

func TestReplaceAndRemove(t *testing.T) {
	reg := keys.NewRegistry(nil)
	reg.Add(keys.Binding{Key: "r", Modifiers: ctrlAlt, Action: keys.ActionRun, Enabled: true})
	reg.Add(keys.Binding{Key: "s", Modifiers: ctrlAlt, Action: keys.ActionStop, Enabled: true})

	err := reg.Replace("r", ctrlAlt, keys.Binding{Key: "s", Modifiers: ctrlAlt, Action: keys.ActionRun, Enabled: true})
	if !errors.Is(err, keys.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := reg.Replace("r", ctrlAlt, keys.Binding{Key: "f5", Action: keys.ActionRun, Enabled: true}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got := reg.Bindings()[0].String(); got != "F5" {
		t.Fatalf("replaced binding = %q", got)
	}
	if !reg.Remove("s", ctrlAlt) || reg.Remove("s", ctrlAlt) {
		t.Fatal("expected one successful removal")
	}
	if err := reg.SetEnabled("x", nil, false); !errors.Is(err, keys.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordsRoundTripAndSkipInvalid(t *testing.T) {
	records := []state.BindingRecord{
		{Key: "r", Action: "run_current_config", Modifiers: []string{"control", "alt"}, Enabled: true},
		{Key: "x", Action: "launch_rockets", Modifiers: nil, Enabled: true},
		{Key: "y", Action: "stop_engine", Modifiers: []string{"hyper"}, Enabled: true},
		{Key: "r", Action: "stop_engine", Modifiers: []string{"ctrl", "alt"}, Enabled: true},
	}
	reg := keys.FromRecords(records, logging.NewNop())
	got := reg.Records()
	want := []state.BindingRecord{{Key: "r", Action: "run_current_config", Modifiers: []string{"ctrl", "alt"}, Enabled: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Records = %#v, want %#v", got, want)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	reg := keys.NewRegistry(nil)
	reg.Reset()
	if len(reg.Bindings()) != len(state.DefaultBindings()) {
		t.Fatalf("expected %d defaults, got %d", len(state.DefaultBindings()), len(reg.Bindings()))
	}
	if action, ok := reg.Match("n", []keys.Modifier{keys.ModSuper}); !ok || action != keys.ActionNextWallpaper {
		t.Fatalf("expected super+n default, got %q %v", action, ok)
	}
}

func TestFormatAndParseChord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ctrl+alt+r", "Ctrl+Alt+R"},
		{"alt+ctrl+Return", "Ctrl+Alt+Enter"},
		{"super+escape", "Super+Esc"},
		{"shift+space", "Shift+Space"},
		{"ctrl+backspace", "Ctrl+Backspace"},
		{"ctrl++", "Ctrl++"},
		{"f12", "F12"},
	}
	for _, tt := range tests {
		key, mods, err := keys.ParseChord(tt.in)
		if err != nil {
			t.Fatalf("ParseChord(%q): %v", tt.in, err)
		}
		if got := keys.FormatChord(key, mods); got != tt.want {
			t.Fatalf("FormatChord(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "ctrl+", "hyper+r"} {
		if _, _, err := keys.ParseChord(bad); err == nil {
			t.Fatalf("expected ParseChord(%q) to fail", bad)
		}
	}
}

func TestDispatcherRunsHandlerAndRecoversPanics(t *testing.T) {
	reg := keys.NewRegistry(nil)
	reg.Reset()
	d := keys.NewDispatcher(reg, logging.NewNop())

	var runs atomic.Int32
	d.Handle(keys.ActionRun, func() error {
		runs.Add(1)
		return nil
	})
	d.Handle(keys.ActionStop, func() error { panic("boom") })
	d.Handle(keys.ActionSetWallpaper, func() error { return errors.New("nothing selected") })

	if !d.Dispatch("r", ctrlAlt) {
		t.Fatal("expected run dispatched")
	}
	if !d.Dispatch("s", ctrlAlt) || !d.Dispatch("w", ctrlAlt) {
		t.Fatal("expected failing handlers still dispatched")
	}
	if d.Dispatch("d", ctrlAlt) {
		t.Fatal("action without handler must not report dispatch")
	}
	if d.Dispatch("q", nil) {
		t.Fatal("unbound chord must not dispatch")
	}
	d.Wait()
	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
}
