package logging

import (
	"log/slog"
	"os"

	"github.com/wadahkode/beranda/internal/platform/correlation"
)

// InitLogger configures the process-wide slog default.
// level: "debug", "info", "warn", "error" (unknown values fall back to "info")
// format: "json" or "text" (anything else means "text")
func InitLogger(level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	// Every log line gets the request's correlation ID when the context has one.
	handler = correlation.NewHandler(handler)

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
