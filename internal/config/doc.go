// Package config loads, normalizes, and validates cybele configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CYBELE_OUTPUT_DIR environment
// fallback. Command-line flags are applied on top of the loaded Config by the
// CLI.
package config
