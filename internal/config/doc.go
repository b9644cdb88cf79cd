// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Defaults are applied for every optional field; Validate enforces required ones.
package config
