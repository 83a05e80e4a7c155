// Package config loads and merges marginalia configuration from multiple
// sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (MARGINALIA_PROVIDER, MARGINALIA_MODEL, ...)
//  3. .env.local and .env files in the working directory
//  4. Config file ($XDG_CONFIG_HOME/marginalia/config.json)
//  5. Built-in defaults
//
// Every key accepted by [SetField] has a matching environment variable, see
// [EnvVar].
package config
