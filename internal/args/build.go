// Package args turns a state snapshot into the backend's ordered argument list.
//
// The engine's parser is positional for some flags, so the order is fixed:
//
//	--dir <path>  --window <res>  --above  --pool <ids...>  --sound <flags...>  <primary>
//
// where <primary> is at most one of --delay <seconds>, --random, --set <id>.
// A missing or unusable directory yields an empty list, which callers treat
// as "nothing to run".
package args

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"lwectl/internal/logging"
	"lwectl/internal/state"
)

// Build returns the argument list for cfg. Validation problems are reported to
// logger (one line per problem) and never returned.
func Build(cfg *state.Config, logger *slog.Logger) []string {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg == nil {
		return []string{}
	}

	dir := cfg.Dir()
	if err := ValidateDirectory(dir); err != nil {
		logging.WarnWithContext(logger, "cannot build engine arguments: "+directoryReason(err), "args_directory_invalid",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "choose an existing, readable wallpaper directory"),
			logging.String(logging.FieldImpact, "engine not launched"),
		)
		return []string{}
	}
	out := []string{"--dir", dir}

	if cfg.Window.Active {
		out = append(out, "--window", cfg.Window.Resolution)
	}
	if cfg.Above {
		out = append(out, "--above")
	}
	if len(cfg.Pool) > 0 {
		out = append(out, "--pool")
		out = append(out, cfg.Pool...)
	}
	out = append(out, soundArgs(cfg.Sound, logger)...)
	out = append(out, primaryArgs(cfg)...)
	return out
}

func directoryReason(err error) string {
	switch {
	case errors.Is(err, ErrDirNotSpecified):
		return "directory not specified"
	case errors.Is(err, ErrDirNotExist):
		return "directory does not exist"
	case errors.Is(err, ErrDirNotDir):
		return "path is not a directory"
	default:
		return "directory is not readable"
	}
}

func soundArgs(sound state.Sound, logger *slog.Logger) []string {
	var flags []string
	if sound.Silent {
		flags = append(flags, "--silent")
	}
	if sound.Volume != nil {
		if n, err := sound.Volume.Int(); err == nil {
			flags = append(flags, "--volume", strconv.Itoa(n))
		} else {
			logging.WarnWithContext(logger, "volume ignored", "args_volume_invalid",
				logging.String("volume", sound.Volume.String()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "set a whole number between 0 and 100"),
				logging.String(logging.FieldImpact, "engine uses its default volume"),
			)
		}
	}
	if sound.NoAutoMute {
		flags = append(flags, "--noautomute")
	}
	if sound.NoAudioProcessing {
		flags = append(flags, "--no-audio-processing")
	}
	if len(flags) == 0 {
		return nil
	}
	return append([]string{"--sound"}, flags...)
}

func primaryArgs(cfg *state.Config) []string {
	switch {
	case cfg.Delay.Active:
		return []string{"--delay", cfg.Delay.Timer}
	case cfg.Random:
		return []string{"--random"}
	case cfg.Set.ItemID != "":
		return []string{"--set", cfg.Set.ItemID}
	default:
		return nil
	}
}

// Format renders exe and argv as a copy-pasteable shell command for logs.
func Format(exe string, argv []string) string {
	parts := make([]string, 0, len(argv)+1)
	parts = append(parts, shellQuote(exe))
	for _, a := range argv {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '/' || r == '.' || r == ':' || r == '=' || r == '+' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
