package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/vcmd/core/logger"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger writes to the output set by SetOutput, stdout by default.
// APP_ENV=dev selects the console writer.
func NewZerologLogger(component string) Logger {
	out := defaultOutput
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.ConsoleWriter{Out: defaultOutput, TimeFormat: time.RFC3339}
	}
	return NewZerologLoggerWithWriter(component, out)
}

// NewZerologLoggerWithWriter writes JSON lines to w.
func NewZerologLoggerWithWriter(component string, w io.Writer) Logger {
	z := zerolog.New(w).Level(zerologLevel(resolveLevel())).
		With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func resolveLevel() corelogger.Level {
	if env := strings.ToLower(os.Getenv("LOG_LEVEL")); env != "" && defaultLevel == corelogger.LevelInfo {
		return corelogger.Level(env)
	}
	return defaultLevel
}

func zerologLevel(l corelogger.Level) zerolog.Level {
	switch l {
	case corelogger.LevelDebug:
		return zerolog.DebugLevel
	case corelogger.LevelWarn:
		return zerolog.WarnLevel
	case corelogger.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Infow(msg string, fields map[string]any) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
