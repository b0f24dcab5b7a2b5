package instance

import "github.com/angelmondragon/chronus-storefront/pkg/env"

// GetID returns the dyno or host identifier of this process, or "local".
func GetID() string {
	return env.First("local", "DYNO", "HOSTNAME")
}
