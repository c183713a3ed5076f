package config

// CLIConfig is the deltamesh-cli settings file (~/.deltamesh/cli.yaml).
type CLIConfig struct {
	// Current names the connection used when neither --server nor
	// --connection is given.
	Current string `koanf:"current" yaml:"current,omitempty"`

	// Output is the default output format (table, json, yaml).
	Output string `koanf:"output" yaml:"output,omitempty"`

	// Connections are saved server endpoints by name.
	Connections map[string]Connection `koanf:"connections" yaml:"connections,omitempty"`
}

// Connection is one saved server endpoint.
type Connection struct {
	Server string `koanf:"server" yaml:"server"`
}

// DefaultServer is used when nothing else names a server.
const DefaultServer = "http://127.0.0.1:8080"

// Default returns an empty configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Output:      "table",
		Connections: make(map[string]Connection),
	}
}
