// Package config loads archivist's configuration.
//
// Settings come from a YAML file layered over built-in defaults, followed by
// environment overrides. A .env file, when present, seeds the environment
// first. Generation API keys are only read from the environment
// (GENERATION_API_KEYS, comma separated) and never from the YAML file.
package config
