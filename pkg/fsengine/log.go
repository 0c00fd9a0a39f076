package fsengine

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a console logger at level writing to w. Every line
// carries lib=fsengine.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("lib", "fsengine").
		Logger()
}

// NewTestLogger creates a logger for tests: 0 is warn, 1 info, 2 debug and
// anything higher trace.
func NewTestLogger(w io.Writer, verbose int) zerolog.Logger {
	var level zerolog.Level
	switch verbose {
	case 0:
		level = zerolog.WarnLevel
	case 1:
		level = zerolog.InfoLevel
	case 2:
		level = zerolog.DebugLevel
	default:
		level = zerolog.TraceLevel
	}
	return NewLogger(w, level)
}

// LogLevelFromString parses a level name case-insensitively. The empty
// string is warn.
func LogLevelFromString(levelStr string) (zerolog.Level, error) {
	if strings.TrimSpace(levelStr) == "" {
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", levelStr, err)
	}
	return level, nil
}

// LoggerFor builds the logger for a configured level name.
func LoggerFor(w io.Writer, levelStr string) (zerolog.Logger, error) {
	level, err := LogLevelFromString(levelStr)
	if err != nil {
		return zerolog.Nop(), err
	}
	return NewLogger(w, level), nil
}

var defaultWriter io.Writer = os.Stderr

// DefaultLogger returns a warn-level logger on stderr.
func DefaultLogger() zerolog.Logger {
	return NewLogger(defaultWriter, zerolog.WarnLevel)
}
