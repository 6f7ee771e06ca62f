package log

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"triarb/internal/config"
)

type Logger = zerolog.Logger

// NewLogger configures the global zerolog level and returns the process
// logger, tagged with the deployment region.
func NewLogger(cfg config.Config) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	var l zerolog.Logger
	if cfg.Logging.Pretty {
		l = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = log.Logger
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return l.With().Str("region", cfg.Network.Region).Logger()
}

// Component derives a logger for one subsystem.
func Component(l Logger, name string) Logger {
	return l.With().Str("component", name).Logger()
}
