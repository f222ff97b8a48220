// Package config provides YAML configuration loading and validation for the
// dubbing studio, with environment overrides for the oracle credentials.
package config
