package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/deltamesh-go/internal/infra/confloader"
)

// EnvPrefix is the environment prefix for CLI settings, for example
// DELTAMESH_CLI_OUTPUT=json.
const EnvPrefix = "DELTAMESH_CLI_"

// DefaultConfigPath returns ~/.deltamesh/cli.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".deltamesh", "cli.yaml")
	}
	return filepath.Join(home, ".deltamesh", "cli.yaml")
}

// Load reads path (DefaultConfigPath when empty) and the environment. A
// missing file yields the defaults.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{confloader.WithEnvPrefix(EnvPrefix)}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if cfg.Connections == nil {
		cfg.Connections = make(map[string]Connection)
	}
	return cfg, nil
}

// Save writes cfg to path (DefaultConfigPath when empty) readable only
// by the owner.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Server resolves the server URL to talk to. An explicit server wins,
// then the named connection, then the current one.
func (c *CLIConfig) Server(explicit, connection string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	name := connection
	if name == "" {
		name = c.Current
	}
	if name == "" {
		return DefaultServer, nil
	}
	conn, ok := c.Connections[name]
	if !ok {
		return "", fmt.Errorf("unknown connection %q", name)
	}
	return conn.Server, nil
}

// Names returns the saved connection names in order.
func (c *CLIConfig) Names() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
