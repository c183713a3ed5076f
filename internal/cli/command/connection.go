package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/deltamesh-go/internal/cli/config"
)

// ConnectionCommand manages saved server connections.
func ConnectionCommand() *cli.Command {
	return &cli.Command{
		Name:    "connection",
		Aliases: []string{"conn"},
		Usage:   "Manage saved server connections",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List saved connections",
				Action:  connectionList,
			},
			{
				Name:      "add",
				Usage:     "Save a connection",
				ArgsUsage: "NAME SERVER",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "use", Usage: "Also make it the current connection"},
				},
				Action: connectionAdd,
			},
			{
				Name:      "use",
				Usage:     "Make a saved connection current",
				ArgsUsage: "NAME",
				Action:    connectionUse,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Forget a saved connection",
				ArgsUsage: "NAME",
				Action:    connectionRemove,
			},
		},
	}
}

type connectionRow struct {
	Name    string `json:"name"`
	Server  string `json:"server"`
	Current bool   `json:"current"`
}

func connectionList(c *cli.Context) error {
	cfg := cliConfig(c)
	rows := make([]connectionRow, 0, len(cfg.Connections))
	for _, name := range cfg.Names() {
		rows = append(rows, connectionRow{
			Name:    name,
			Server:  cfg.Connections[name].Server,
			Current: name == cfg.Current,
		})
	}
	if len(rows) == 0 && isTable(c) {
		fmt.Fprintln(stdout(c), "No saved connections.")
		return nil
	}
	return render(c, rows)
}

func connectionAdd(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	name, server := c.Args().Get(0), c.Args().Get(1)
	cfg := cliConfig(c)
	cfg.Connections[name] = config.Connection{Server: server}
	if c.Bool("use") || cfg.Current == "" {
		cfg.Current = name
	}
	if err := saveConfig(c, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Connection %q saved.\n", name)
	return nil
}

func connectionUse(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	name := c.Args().First()
	cfg := cliConfig(c)
	if _, ok := cfg.Connections[name]; !ok {
		return fmt.Errorf("unknown connection %q", name)
	}
	cfg.Current = name
	if err := saveConfig(c, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Now using %q.\n", name)
	return nil
}

func connectionRemove(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	name := c.Args().First()
	cfg := cliConfig(c)
	if _, ok := cfg.Connections[name]; !ok {
		return fmt.Errorf("unknown connection %q", name)
	}
	delete(cfg.Connections, name)
	if cfg.Current == name {
		cfg.Current = ""
	}
	if err := saveConfig(c, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Connection %q removed.\n", name)
	return nil
}

func saveConfig(c *cli.Context, cfg *config.CLIConfig) error {
	return config.Save(cfg, ParseGlobalFlags(c).ConfigPath)
}
