package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func New(environment string) zerolog.Logger {
	return NewWithWriter(environment, os.Stdout)
}

// NewWithWriter builds the console logger on top of out. Production keeps
// plain JSON lines, everything else gets the human readable console writer.
func NewWithWriter(environment string, out io.Writer) zerolog.Logger {
	var w io.Writer = out
	if environment != "production" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(w).With().
		Timestamp().
		Str("service", "user-console").
		Str("env", environment).
		Logger()

	if environment != "production" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}
