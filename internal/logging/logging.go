// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup returns a logger writing to w at level. Format "json" selects
// slog.JSONHandler; anything else a tint handler, colored only when w is a
// terminal. The logger is also installed as slog.Default.
func Setup(level slog.Level, format string, w io.Writer) *slog.Logger {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Err returns an error attribute that tint renders highlighted.
func Err(err error) slog.Attr {
	return tint.Err(err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
