package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"lwectl/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Console receives human or JSON output. Nil means stderr.
	Console io.Writer
	// DisableConsole drops console output entirely (the panel owns the terminal).
	DisableConsole bool
	// FilePath mirrors every line to a timestamped, size-rotated diagnostic file.
	FilePath     string
	FileMaxBytes int64
	// Hub, when set, receives every record for in-process display.
	Hub         *StreamHub
	Development bool
}

// Logger bundles the slog logger with the resources it holds open.
type Logger struct {
	*slog.Logger
	file *RotatingFile
}

// Close releases the diagnostic file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// FilePath reports the diagnostic file in use, or "".
func (l *Logger) FilePath() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Path()
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handlers []slog.Handler
	if !opts.DisableConsole {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		switch format {
		case "json":
			handlers = append(handlers, newJSONHandler(console, levelVar, addSource))
		case "console":
			handlers = append(handlers, newLineHandler(console, levelVar, consoleStamp, addSource))
		default:
			return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
		}
	}

	out := &Logger{}
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := OpenRotatingFile(path, opts.FileMaxBytes)
		if err != nil {
			return nil, err
		}
		out.file = file
		handlers = append(handlers, newLineHandler(file, levelVar, diagnosticStamp, false))
	}
	if opts.Hub != nil {
		handlers = append(handlers, NewStreamHandler(opts.Hub, levelVar))
	}

	out.Logger = slog.New(newTeeHandler(handlers...))
	return out, nil
}

// NewFromConfig creates a logger using controller settings. A file mirror that
// cannot be opened degrades to console-only output with a warning.
func NewFromConfig(cfg *config.Config, hub *StreamHub, console io.Writer) (*Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Console: console, Hub: hub})
	}
	opts := Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: console,
		Hub:     hub,
	}
	if cfg.Logging.MirrorFile {
		opts.FilePath = cfg.LogFilePath()
		opts.FileMaxBytes = int64(cfg.Logging.FileMaxKiB) * 1024
	}
	logger, err := New(opts)
	if err == nil || opts.FilePath == "" {
		return logger, err
	}
	fileErr := err
	opts.FilePath = ""
	logger, err = New(opts)
	if err != nil {
		return nil, errors.Join(fileErr, err)
	}
	WarnWithContext(logger.Logger, "diagnostic log file unavailable; logging to console only", "log_file_unavailable",
		Error(fileErr),
		String("path", cfg.LogFilePath()),
		String(FieldErrorHint, "check paths.log_dir permissions"),
		String(FieldImpact, "no on-disk diagnostic log for this session"),
	)
	return logger, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
