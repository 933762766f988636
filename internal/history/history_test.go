package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"lwectl/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordFinishAndRecent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	older := history.Launch{RunID: "a", StartedAt: time.Now().Add(-time.Hour), Executable: "/bin/engine", Args: []string{"--dir", "/w", "--random"}, Mode: "random", PID: 10}
	newer := history.Launch{RunID: "b", Executable: "/bin/engine", ItemID: "42"}
	for _, l := range []history.Launch{older, newer} {
		if err := store.Record(ctx, l); err != nil {
			t.Fatalf("Record %s: %v", l.RunID, err)
		}
	}
	if err := store.Finish(ctx, "a", 1, history.OutcomeExited, "exit status 1"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := store.Finish(ctx, "a", 0, history.OutcomeStopped, ""); err != nil {
		t.Fatalf("second Finish: %v", err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].RunID != "b" || recent[1].RunID != "a" {
		t.Fatalf("unexpected order %+v", recent)
	}
	a := recent[1]
	if a.Outcome != history.OutcomeExited || a.ExitCode == nil || *a.ExitCode != 1 || a.FinishedAt == nil {
		t.Fatalf("finish not recorded: %+v", a)
	}
	if !reflect.DeepEqual(a.Args, []string{"--dir", "/w", "--random"}) {
		t.Fatalf("args = %v", a.Args)
	}
	if recent[0].Outcome != history.OutcomeRunning || recent[0].Args == nil {
		t.Fatalf("defaults not applied: %+v", recent[0])
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.Finish(context.Background(), "missing", 0, history.OutcomeStopped, "")
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneRemovesOldLaunches(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	if err := store.Record(ctx, history.Launch{RunID: "old", StartedAt: time.Now().AddDate(0, 0, -30), Executable: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, history.Launch{RunID: "new", Executable: "x"}); err != nil {
		t.Fatal(err)
	}
	n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected old launch pruned, got %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Record(ctx, history.Launch{RunID: "keep", Executable: "x"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(ctx, "keep"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
