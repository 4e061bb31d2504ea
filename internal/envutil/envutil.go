package envutil

import "os"

// Get retrieves an environment variable with automatic DRAW_ prefix fallback.
// It checks for the environment variable in this order:
// 1. Exact key as provided
// 2. Key with DRAW_ prefix
// 3. Returns fallback if neither exists
//
// This supports both container-style (DRAW_ prefixed) and local dev (unprefixed) configurations.
func Get(key, fallback string) string {
	// Try exact key first (supports both prefixed and unprefixed)
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	// Try with DRAW_ prefix if not already prefixed
	if len(key) < 5 || key[:5] != "DRAW_" {
		if value, exists := os.LookupEnv("DRAW_" + key); exists {
			return value
		}
	}

	return fallback
}
