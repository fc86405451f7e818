package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerAdapter_KeyValueArgs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.Info("Tool completed", "name", "visitUrl", "durationMs", 42)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "Tool completed", entries[0].Message)
		fields := entries[0].ContextMap()
		assert.Equal(t, "visitUrl", fields["name"])
		assert.EqualValues(t, 42, fields["durationMs"])
	}
}

func TestLoggerAdapter_WithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	scoped := log.WithField("session", "s-1").WithFields(map[string]any{"tool": "check"})
	scoped.Warn("Check failed")
	log.Debug("unscoped")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "s-1", fields["session"])
		assert.Equal(t, "check", fields["tool"])
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Empty(t, entries[1].ContextMap())
	}
}

func TestNewLoggerAdapter_WritesFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = t.TempDir() + "/nested/agent.log"
	cfg.Level = "debug"

	log, err := NewLoggerAdapter(cfg)
	assert.NoError(t, err)
	log.Debug("hello")
	assert.NoError(t, log.Close())
	assert.FileExists(t, cfg.File)
}
