package appconf

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"scheddb.mobitransit.org/internal/models"
)

// RunConfig is the optional YAML run configuration. Flags may override
// individual fields after loading.
type RunConfig struct {
	// FeedPath is the GTFS static zip to ingest.
	FeedPath string `yaml:"feed_path" validate:"required"`
	// Agency restricts resolution and materialization to one agency id.
	Agency string `yaml:"agency"`
	// PoolSize overrides the materialization worker-pool size.
	PoolSize int `yaml:"pool_size" validate:"gte=0,lte=64"`
	// LookBackward permits current-mode resolution to grow into the past.
	LookBackward bool `yaml:"look_backward"`
	// PublishTomorrow shifts the reference date one day forward.
	PublishTomorrow bool `yaml:"publish_tomorrow"`
	// FixedDate pins the reference date (YYYYMMDD). Debug aid.
	FixedDate models.Date `yaml:"fixed_date" validate:"omitempty,gte=19000101,lte=21991231"`
	// WithNext also resolves and materializes the following period.
	WithNext bool `yaml:"with_next"`
	// Verbose enables debug dumps of the staging store and aggregate.
	Verbose bool `yaml:"verbose"`
}

// LoadRunConfig reads and validates a YAML run configuration file.
func LoadRunConfig(path string) (RunConfig, error) {
	var cfg RunConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading run config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing run config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid run config: %w", err)
	}
	return cfg, nil
}
