// Package logging assembles structured slog loggers and the diagnostic sinks
// used across lwectl.
//
// It owns the console/JSON handlers, the timestamped on-disk diagnostic log
// (rotated by size), and a bounded in-memory ring that the terminal panel
// renders. Every handler serializes its own writes, so backend output drains
// and keybinding workers may log concurrently. A no-op logger is provided for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// the same field shape (component, event_type, error_hint, impact).
package logging
