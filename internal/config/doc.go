// Package config loads, normalizes, and validates docflow's TOML
// configuration.
//
// Configuration is resolved from an explicit path, then
// ~/.config/docflow/config.toml, then ./docflow.toml, falling back to
// defaults when no file exists. Secrets can be supplied through a .env file
// or the environment and override file values.
package config
