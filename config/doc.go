// Package config loads the announcer configuration from YAML, .env files,
// and GORPO_-prefixed environment variables.
package config
