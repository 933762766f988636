package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"lwectl/internal/preflight"
)

// statusKind grades one line of status output.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

var statusKinds = [...]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func (k statusKind) label() string {
	if k < 0 || int(k) >= len(statusKinds) {
		return statusKinds[statusInfo].label
	}
	return statusKinds[k].label
}

func (k statusKind) color() string {
	if k < 0 || int(k) >= len(statusKinds) {
		return ""
	}
	return statusKinds[k].color
}

// renderStatusLine lays out "label: [KIND] message" with the label padded so
// the brackets line up across a report.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	text := "[" + kind.label() + "]"
	if message != "" {
		text += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", text)
	if colorize && kind.color() != "" {
		return kind.color() + line + ansiReset
	}
	return line
}

// checkKind maps a preflight result onto a grade: optional failures warn.
func checkKind(result preflight.Result) statusKind {
	switch {
	case result.Passed:
		return statusOK
	case result.Optional:
		return statusWarn
	default:
		return statusError
	}
}

// statusReport collects sections of graded lines for one command's output.
type statusReport struct {
	colorize bool
	lines    []string
}

func newStatusReport(out io.Writer) *statusReport {
	return &statusReport{colorize: shouldColorize(out)}
}

// section starts a titled block, separated from the previous one by a blank line.
func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	header := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(header))
	if r.colorize {
		header, rule = ansiBlue+header+ansiReset, ansiBlue+rule+ansiReset
	}
	r.lines = append(r.lines, header, rule)
}

func (r *statusReport) add(label string, kind statusKind, message string) {
	r.lines = append(r.lines, renderStatusLine(label, kind, message, r.colorize))
}

func (r *statusReport) check(result preflight.Result) {
	r.add(result.Name, checkKind(result), result.Detail)
}

func (r *statusReport) print(out io.Writer) {
	if len(r.lines) == 0 {
		return
	}
	fmt.Fprintln(out, strings.Join(r.lines, "\n"))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
