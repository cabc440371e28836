package logging

import (
	"github.com/pion/logging"
)

var loggerFactory = logging.NewDefaultLoggerFactory()

// NewLogger returns a leveled logger for scope. Levels are controlled through
// the PION_LOG_* environment variables read by the default factory.
func NewLogger(scope string) logging.LeveledLogger {
	return loggerFactory.NewLogger(scope)
}

// Factory returns the package-wide logger factory.
func Factory() logging.LoggerFactory {
	return loggerFactory
}
