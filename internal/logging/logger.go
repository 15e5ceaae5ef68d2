package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/crmarques/quayconf/faults"
	"github.com/rs/zerolog"
)

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	Level  Level
	Format string
	Output io.Writer
}

// New builds the invocation logger. Console output is the default because
// the tool mostly runs in a terminal or a CI log.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch strings.TrimSpace(cfg.Format) {
	case "", FormatConsole:
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    !isTerminal(output),
		}
	case FormatJSON:
	default:
		return zerolog.Nop(), faults.Validation("invalid log format: use console or json", nil)
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

func parseLevel(level Level) (zerolog.Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(string(level)))) {
	case DebugLevel:
		return zerolog.DebugLevel, nil
	case "", WarnLevel:
		return zerolog.WarnLevel, nil
	case InfoLevel:
		return zerolog.InfoLevel, nil
	case ErrorLevel:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, faults.Validation("invalid log level: use debug, info, warn, or error", nil)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
