// Package config loads the YAML configuration shared by the CLI commands:
// which bus device to use, which addresses to talk to, retry and timing
// parameters, and where to persist definitions and captures.
package config
