package appconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheddb.mobitransit.org/internal/models"
)

func TestEnvFlagToEnvironment(t *testing.T) {
	assert.Equal(t, Test, EnvFlagToEnvironment("test"))
	assert.Equal(t, Production, EnvFlagToEnvironment("production"))
	assert.Equal(t, Development, EnvFlagToEnvironment("development"))
	assert.Equal(t, Development, EnvFlagToEnvironment(""))
}

func TestPoolSize(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("SCHEDDB_POOL_SIZE", "")

	assert.Equal(t, DefaultPoolSize, PoolSize(0))
	assert.Equal(t, 8, PoolSize(8))

	t.Setenv("SCHEDDB_POOL_SIZE", "6")
	assert.Equal(t, 6, PoolSize(0))
	assert.Equal(t, 8, PoolSize(8)) // explicit override beats the variable

	t.Setenv("CI", "true")
	assert.Equal(t, 1, PoolSize(8)) // CI wins over everything
}

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yml")
	content := []byte(`
feed_path: feed.zip
agency: "25"
pool_size: 2
look_backward: true
fixed_date: 20191217
with_next: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "feed.zip", cfg.FeedPath)
	assert.Equal(t, "25", cfg.Agency)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.True(t, cfg.LookBackward)
	assert.True(t, cfg.WithNext)
	assert.Equal(t, models.Date(20191217), cfg.FixedDate)
}

func TestLoadRunConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yml")
	require.NoError(t, os.WriteFile(path, []byte("pool_size: 2\n"), 0o600))

	_, err := LoadRunConfig(path) // feed_path missing
	assert.Error(t, err)
}

func TestLoadRunConfig_MissingFile(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
