package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
)

// jsonStamp keeps milliseconds so bursts of backend output stay ordered.
const jsonStamp = "2006-01-02T15:04:05.000Z07:00"

// newJSONHandler writes one object per record keyed like LogEvent: ts,
// level, msg.
func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: jsonAttr,
	})
}

func jsonAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(jsonStamp))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			// Trimmed to package/file.go:line.
			file := filepath.Join(filepath.Base(filepath.Dir(src.File)), filepath.Base(src.File))
			attr.Value = slog.StringValue(file + ":" + strconv.Itoa(src.Line))
		}
	}
	return attr
}
