// Package config provides configuration loading and validation for recmeter.
// It reads a YAML file on top of built-in defaults; command-line flags
// override individual values afterwards.
package config
