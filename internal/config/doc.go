// Package config loads and validates the TOML configuration that drives
// a scour run: store location, worker tuning, discovery filters, and log
// output settings.
package config
