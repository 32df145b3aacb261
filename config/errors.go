package config

import "errors"

var (
	// ErrInvalidConfig is returned when a loaded configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedConfig is returned when the YAML file cannot be parsed.
	ErrMalformedConfig = errors.New("malformed configuration file")
)
