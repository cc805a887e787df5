package logger

import (
	"io"
	"log/slog"
	"strings"
)

// ValidLogLevels lists the level names accepted by New and SetLevel.
var ValidLogLevels = []string{"debug", "info", "warn", "warning", "error"}

// ValidLogFormats lists the supported handler formats.
var ValidLogFormats = []string{"text", "json"}

// Service holds the logger and its dynamic level controller.
type Service struct {
	*slog.Logger
	level *slog.LevelVar
}

// SetLevel dynamically changes the logging level.
func (s *Service) SetLevel(level string) {
	s.level.Set(parseLevel(level))
}

// Component returns a child logger tagged with the given component name.
func (s *Service) Component(name string) *slog.Logger {
	return s.With("component", name)
}

// New creates a new logging service.
func New(level, format string, writer io.Writer) *Service {
	levelVar := &slog.LevelVar{}
	levelVar.Set(parseLevel(level))

	opts := &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Service{
		Logger: slog.New(handler),
		level:  levelVar,
	}
}

// Discard returns a logger that drops every record. Used when callers don't supply one.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch {
	case level < slog.LevelInfo:
		a.Value = slog.StringValue("DEBUG")
	case level < slog.LevelWarn:
		a.Value = slog.StringValue("INFO")
	case level < slog.LevelError:
		a.Value = slog.StringValue("WARN")
	default:
		a.Value = slog.StringValue("ERROR")
	}
	return a
}
