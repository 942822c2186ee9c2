// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process-wide zerolog logger. The CLI constructs
// it once and injects it into the pipeline stages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger at the given level. Console output is human-readable
// when pretty is set, JSON otherwise. Logs go to stderr so batch status lines
// on stdout stay parseable.
func New(level string, pretty bool) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var writer io.Writer = os.Stderr
	if pretty {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "netsecops-dedup").
		Logger()

	return logger, nil
}
