package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default text handler. Debug level is opt-in since
// the fetch layer logs every request at debug.
func InitSlog(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
