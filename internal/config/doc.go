// Package config defines the appliance settings and provides helpers to
// load and validate them from YAML with environment overrides.
//
// Credentials (the Telegram token and chat id) are read from the
// environment only and are never written to or read from the YAML file.
package config
