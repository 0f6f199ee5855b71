package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingBeforeInitDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Infof("hello %s", "world")
		Error("boom", errors.New("x"))
	})
}

func TestReplaceLoggerCapturesEntries(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ReplaceLogger(zap.New(core))
	t.Cleanup(func() { ReplaceLogger(zap.NewNop()) })

	Infow("document updated", "id", "doc1", "progress", 30)
	Error("ingestion failed", errors.New("embedding down"))

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "document updated", entries[0].Message)
	assert.Equal(t, "doc1", entries[0].ContextMap()["id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "embedding down", entries[1].ContextMap()["error"])
}

func TestBuildFallsBackToInfoLevel(t *testing.T) {
	logger, err := build("not-a-level", "json", "")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestBuildConsoleFormat(t *testing.T) {
	logger, err := build("debug", "console", t.TempDir())
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
