// Package logging configures the shared run logger: a human console sink on
// stderr plus, when a log file path is given, a file sink at that path.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns a logger writing to stderr and, when logFile is non-empty, to
// the given file. The file handle is returned so the caller can close it when
// the run ends.
func Setup(level string, logFile string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}

	var closer io.Closer
	var w io.Writer = console
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return zerolog.Nop(), nil, err
		}
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		closer = f
		w = zerolog.MultiLevelWriter(console, f)
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
	return logger, closer, nil
}
