package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"scheddb.mobitransit.org/internal/appconf"
	"scheddb.mobitransit.org/internal/logging"
	"scheddb.mobitransit.org/internal/policy"
)

func TestApplyRunConfig(t *testing.T) {
	t.Run("file fills in unset flags", func(t *testing.T) {
		cfg := config{}
		applyRunConfig(&cfg, appconf.RunConfig{
			FeedPath:  "feed.zip",
			Agency:    "agency-1",
			PoolSize:  8,
			FixedDate: 20240409,
			WithNext:  true,
		})

		assert.Equal(t, "feed.zip", cfg.feedPath)
		assert.Equal(t, "agency-1", cfg.agency)
		assert.Equal(t, 8, cfg.poolSize)
		assert.Equal(t, 20240409, cfg.fixedDate)
		assert.True(t, cfg.withNext)
	})

	t.Run("flags win over the file", func(t *testing.T) {
		cfg := config{feedPath: "other.zip", poolSize: 2}
		applyRunConfig(&cfg, appconf.RunConfig{FeedPath: "feed.zip", PoolSize: 8})

		assert.Equal(t, "other.zip", cfg.feedPath)
		assert.Equal(t, 2, cfg.poolSize)
	})
}

func TestRun_RequiresFeed(t *testing.T) {
	assert.Equal(t, 1, run(config{env: "test"}))
}

func TestIngest_LogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger(&buf, slog.LevelInfo)
	ctx := logging.WithLogger(context.Background(), logger)

	app := &application{
		config: config{feedPath: filepath.Join(t.TempDir(), "missing.zip")},
		policy: policy.Base{},
	}
	assert.Equal(t, 1, app.ingest(ctx))
	assert.Contains(t, buf.String(), "failed to load feed")
}
