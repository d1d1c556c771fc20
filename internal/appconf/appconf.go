// Package appconf holds environment handling shared across the application.
package appconf

import (
	"os"
	"strconv"
)

// Environment is the operating environment of the current process.
type Environment int

const (
	Test Environment = iota
	Development
	Production
)

// DefaultPoolSize is the worker-pool size used when nothing overrides it.
const DefaultPoolSize = 4

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment maps the -env flag value to an Environment.
func EnvFlagToEnvironment(name string) Environment {
	switch name {
	case "test":
		return Test
	case "production":
		return Production
	default:
		return Development
	}
}

// IsCI reports whether the process runs under a continuous-integration
// environment, detected through the conventional CI variable.
func IsCI() bool {
	ci, err := strconv.ParseBool(os.Getenv("CI"))
	return err == nil && ci
}

// PoolSize resolves the materialization worker-pool size. CI forces a single
// worker to bound resource usage; otherwise an explicit override wins, then
// the SCHEDDB_POOL_SIZE variable, then the default.
func PoolSize(override int) int {
	if IsCI() {
		return 1
	}
	if override > 0 {
		return override
	}
	if v, err := strconv.Atoi(os.Getenv("SCHEDDB_POOL_SIZE")); err == nil && v > 0 {
		return v
	}
	return DefaultPoolSize
}
