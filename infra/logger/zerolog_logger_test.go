package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelogger "github.com/kilianp07/vcmd/core/logger"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"k": "v"})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerComponentAndFields(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("dispatcher", &buf)
	l.Infow("dispatched", map[string]any{"method": "door.lock"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatcher", line["component"])
	assert.Equal(t, "door.lock", line["method"])
	assert.Equal(t, "info", line["level"])
}

func TestZerologLoggerLevel(t *testing.T) {
	defer SetLevel(corelogger.LevelInfo)
	SetLevel(corelogger.LevelWarn)
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("x", &buf)
	l.Infof("hidden")
	assert.Zero(t, buf.Len())
	l.Warnf("shown")
	assert.NotZero(t, buf.Len())
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	defer SetLevel(corelogger.LevelInfo)
	SetLevel("verbose")
	assert.Equal(t, corelogger.LevelInfo, defaultLevel)
}

func TestSetOutputRedirectsNewLoggers(t *testing.T) {
	t.Setenv("APP_ENV", "")
	var buf bytes.Buffer
	prev := defaultOutput
	SetOutput(&buf)
	defer SetOutput(prev)
	SetOutput(nil)

	New("cmd").Infof("hello")
	assert.Contains(t, buf.String(), `"component":"cmd"`)
}
