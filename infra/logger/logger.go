package logger

import (
	"io"
	"os"
	"strings"

	corelogger "github.com/kilianp07/vcmd/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

var (
	defaultLevel            = corelogger.LevelInfo
	defaultOutput io.Writer = os.Stdout
)

// SetOutput redirects loggers created afterwards. Commands that print
// results on stdout send logs to stderr.
func SetOutput(w io.Writer) {
	if w != nil {
		defaultOutput = w
	}
}

// SetLevel changes the level used by loggers created afterwards. Unknown
// values are ignored.
func SetLevel(l corelogger.Level) {
	switch corelogger.Level(strings.ToLower(string(l))) {
	case corelogger.LevelDebug, corelogger.LevelInfo, corelogger.LevelWarn, corelogger.LevelError:
		defaultLevel = corelogger.Level(strings.ToLower(string(l)))
	}
}

// New returns a Logger for the given component. The output format follows
// APP_ENV and the level follows LOG_LEVEL unless SetLevel was called.
func New(component string) Logger {
	return NewZerologLogger(component)
}
