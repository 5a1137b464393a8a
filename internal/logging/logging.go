// Package logging builds the slog handler used by the process.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/terra-clan/contest-client/internal/config"
)

// Output formats
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatText = "text"
)

// NewHandler returns a JSON handler, or a tint handler when out is a terminal
// or the text format is forced.
func NewHandler(cfg config.LogConfig, out io.Writer) slog.Handler {
	level := ParseLevel(cfg.Level)

	format := strings.ToLower(cfg.Format)
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if isTerminal(out) {
			format = FormatText
		}
	}

	if format == FormatJSON {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: level,
		})
	}

	return tint.NewHandler(out, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if _, ok := attr.Value.Any().(error); ok {
				return tint.Attr(9, attr)
			}
			return attr
		},
		TimeFormat: time.TimeOnly,
		NoColor:    !useColors(out),
	})
}

// ParseLevel maps a config level name to a slog level; unknown names mean info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func useColors(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isTerminal(w) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}
