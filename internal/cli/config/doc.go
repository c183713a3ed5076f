// Package config holds deltamesh-cli's own settings: saved server
// connections and the default output format. The file is YAML and
// DELTAMESH_CLI_* environment variables override it.
package config
