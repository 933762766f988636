package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"lwectl/internal/history"
	"lwectl/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Backend", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Backend:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Backend", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestCheckKinds(t *testing.T) {
	tests := []struct {
		result preflight.Result
		want   string
	}{
		{preflight.Result{Name: "Display", Passed: true, Detail: "DISPLAY=:0"}, "[OK]"},
		{preflight.Result{Name: "systemctl", Optional: true, Detail: "not found"}, "[WARN]"},
		{preflight.Result{Name: "Engine script", Detail: "missing"}, "[ERROR]"},
	}
	for _, tt := range tests {
		got := renderStatusLine(tt.result.Name, checkKind(tt.result), tt.result.Detail, false)
		if !strings.Contains(got, tt.want) {
			t.Fatalf("check %s rendered %q, want %s", tt.result.Name, got, tt.want)
		}
	}
}

func TestStatusReportSections(t *testing.T) {
	var buf bytes.Buffer
	report := newStatusReport(&buf)
	report.section("Engine")
	report.add("Backend", statusInfo, "not running")
	report.section("Checks")
	report.check(preflight.Result{Name: "Display", Passed: true, Detail: "DISPLAY=:0"})
	report.print(&buf)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		"== Engine ==",
		"------------",
		renderStatusLine("Backend", statusInfo, "not running", false),
		"",
		"== Checks ==",
		"------------",
		renderStatusLine("Display", statusOK, "DISPLAY=:0", false),
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("report = %q, want %q", lines, want)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatal("non-terminal output must not be colored")
	}
}

func TestStatusKindOutOfRange(t *testing.T) {
	if got := renderStatusLine("X", statusKind(99), "", true); got != statusIndent+fmt.Sprintf("%-*s", statusLabelWidth, "X:")+" [INFO]" {
		t.Fatalf("unknown kind rendered %q", got)
	}
}

func TestRenderTableEmptyAndRows(t *testing.T) {
	spec := tableSpec{headers: []string{"Group", "Items"}, aligns: []columnAlignment{alignLeft, alignRight}, empty: "No groups"}
	if got := renderTable(spec, nil); got != "No groups" {
		t.Fatalf("empty table = %q", got)
	}
	got := renderTable(spec, [][]string{{"night", "3"}, {"short"}})
	if !strings.Contains(got, "night") || !strings.Contains(got, "short") {
		t.Fatalf("rows missing from table:\n%s", got)
	}
	if renderTable(tableSpec{}, [][]string{{"x"}}) != "" {
		t.Fatal("expected no output without headers")
	}
}

func TestHistoryRowFormatsFinishedLaunch(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	finished := started.Add(90 * time.Second)
	code := 1
	row := historyRow(history.Launch{
		RunID:      "0123456789abcdef",
		StartedAt:  started,
		FinishedAt: &finished,
		Mode:       "set",
		ItemID:     "42",
		PID:        4242,
		Outcome:    history.OutcomeExited,
		ExitCode:   &code,
		Detail:     "signal: killed ",
	})
	want := []string{"2026-03-01 10:00:00", "01234567", "set", "42", "4242", string(history.OutcomeExited) + ": signal: killed", "1", "1m30s"}
	if strings.Join(row, "|") != strings.Join(want, "|") {
		t.Fatalf("historyRow = %q, want %q", row, want)
	}
}
