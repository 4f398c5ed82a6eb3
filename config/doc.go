// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// The tracked region, grid cell size, and organization list are fixed at
// startup and never change while the service runs.
package config
