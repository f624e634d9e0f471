// Package config provides configuration loading for commitd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables, with hardcoded defaults below both:
//
//	cfg, err := config.Load("/etc/commitd/config.yaml")
//
// Environment variables use the COMMITD_ prefix; see Load for the key
// mapping. Secret values (API keys, webhook URLs) use the Secret type,
// which redacts itself in logs and JSON.
package config
