package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("creates JSON logger with proper configuration", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		// Log a test message
		logger.Info("test message",
			slog.String("component", "test"),
			slog.Int("count", 42))

		output := buf.String()

		// Verify JSON structure
		assert.Contains(t, output, `"level":"INFO"`)
		assert.Contains(t, output, `"msg":"test message"`)
		assert.Contains(t, output, `"component":"test"`)
		assert.Contains(t, output, `"count":42`)
		assert.Contains(t, output, `"time":`)
	})

	t.Run("respects log level configuration", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelWarn)

		// These should not appear
		logger.Debug("debug message")
		logger.Info("info message")

		// This should appear
		logger.Warn("warning message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warning message")
	})
}

func TestLoggerHelpers(t *testing.T) {
	t.Run("LogError creates structured error log", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		err := assert.AnError
		LogError(logger, "failed to stage feed", err,
			slog.String("path", "feed.zip"),
			slog.String("component", "feed_reader"))

		output := buf.String()
		assert.Contains(t, output, `"level":"ERROR"`)
		assert.Contains(t, output, `"msg":"failed to stage feed"`)
		assert.Contains(t, output, `"error":"assert.AnError general error for testing"`)
		assert.Contains(t, output, `"path":"feed.zip"`)
		assert.Contains(t, output, `"component":"feed_reader"`)
	})

	t.Run("LogOperation logs structured operation info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogOperation(logger, "feed loaded",
			slog.String("source", "file.zip"),
			slog.Int("stops", 150),
			slog.Duration("duration", 0)) // Will be ignored if zero

		output := buf.String()
		assert.Contains(t, output, `"level":"INFO"`)
		assert.Contains(t, output, `"msg":"feed loaded"`)
		assert.Contains(t, output, `"source":"file.zip"`)
		assert.Contains(t, output, `"stops":150`)
		assert.NotContains(t, output, `"duration"`)
	})

	t.Run("helpers tolerate a nil logger", func(t *testing.T) {
		LogError(nil, "ignored", assert.AnError)
		LogOperation(nil, "ignored")
	})
}

func TestContextLogger(t *testing.T) {
	t.Run("stores and retrieves logger from context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		ctx := context.Background()
		ctx = WithLogger(ctx, logger)

		retrievedLogger := FromContext(ctx)
		require.NotNil(t, retrievedLogger)

		retrievedLogger.Info("test from context")

		output := buf.String()
		assert.Contains(t, output, "test from context")
	})

	t.Run("returns default logger when not in context", func(t *testing.T) {
		ctx := context.Background()
		logger := FromContext(ctx)

		// Should not panic and should return a usable logger
		require.NotNil(t, logger)
		logger.Info("test message") // Should not panic
	})
}
