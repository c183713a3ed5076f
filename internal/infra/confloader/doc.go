// Package confloader loads layered configuration with koanf and watches
// configuration files for changes with fsnotify.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables
//  3. Configuration file (YAML)
//  4. Values already present in the target struct
package confloader
