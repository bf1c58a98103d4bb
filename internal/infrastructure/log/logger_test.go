package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitDefault(t *testing.T) {
	Default().Error("test init default")
}

func TestLogger_With(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := ReplaceDefault(zap.New(core))
	defer restore()

	l := Default()

	l1 := l.With(zap.String("x", "y"))
	l1.Info("test logger 1")

	l2 := l.Named("mapping").WithString("x2", "y2")
	l2.Info("test logger 2")
	l2.Debug("dropped")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "y", entries[0].ContextMap()["x"])
	assert.Equal(t, "mapping", entries[1].LoggerName)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}
