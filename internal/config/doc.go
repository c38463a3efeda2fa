// Package config defines the settings used by the doorbell binaries and
// provides helpers to load, validate and save them.
//
// A single file carries a server section and a client section. YAML is the
// default format; files with a .toml extension are decoded as TOML.
package config
