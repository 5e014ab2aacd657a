// Package config loads the runtime configuration for the OpenMint daemon:
// governance identity, notification sinks, journal backend, logging and
// metrics. Configuration is a single JSON file; relative paths inside it are
// resolved against the file's own directory.
package config
