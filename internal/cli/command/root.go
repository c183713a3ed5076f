package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/deltamesh-go/internal/cli/config"
	"github.com/yndnr/deltamesh-go/internal/cli/connection"
	"github.com/yndnr/deltamesh-go/internal/cli/output"
	"github.com/yndnr/deltamesh-go/internal/infra/buildinfo"
)

const metaConfig = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "deltamesh-cli",
		Usage:   "Inspect and manage a deltamesh-server node",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SessionCommand(),
			ReplicationCommand(),
			HealthCommand(),
			ConnectionCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("load cli config: %w", err)
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[metaConfig] = cfg
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server HTTP address (e.g. 127.0.0.1:8080)",
			EnvVars: []string{"DELTAMESH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "connection",
			Aliases: []string{"n"},
			Usage:   "Saved connection to use",
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI settings file",
			EnvVars: []string{"DELTAMESH_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show more columns",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: connection.DefaultTimeout,
		},
	}
}

// GlobalFlags are the options shared by every command.
type GlobalFlags struct {
	Server     string
	Connection string
	ConfigPath string
	Output     string
	Wide       bool
	Timeout    time.Duration
}

// ParseGlobalFlags reads the global flags, filling the output format
// from the settings file when the flag is absent.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	f := &GlobalFlags{
		Server:     c.String("server"),
		Connection: c.String("connection"),
		ConfigPath: c.String("config"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		Timeout:    c.Duration("timeout"),
	}
	if f.Output == "" {
		f.Output = cliConfig(c).Output
	}
	return f
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if c.App != nil {
		if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
			return cfg
		}
	}
	return config.Default()
}

// newClient returns a client for the server the flags and settings
// select.
func newClient(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)
	server, err := cliConfig(c).Server(flags.Server, flags.Connection)
	if err != nil {
		return nil, err
	}
	return connection.NewHTTPClient(server, flags.Timeout), nil
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(stdout(c), data)
}

// isTable reports whether people, not scripts, read the output.
func isTable(c *cli.Context) bool {
	format, err := output.ParseFormat(ParseGlobalFlags(c).Output)
	return err == nil && format == output.FormatTable
}

func stdout(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// requireArgs fails unless exactly n positional arguments were given.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("expected %d argument(s): %s %s", n, c.Command.FullName(), c.Command.ArgsUsage)
	}
	return nil
}
