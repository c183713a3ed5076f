package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/deltamesh-go/internal/infra/buildinfo"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "deltamesh-server",
		Usage:   "Replicated session store node",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"DELTAMESH_CONFIG"},
			},
			&cli.StringFlag{Name: "node-id", Usage: "Cluster node ID (generated when empty)"},
			&cli.StringFlag{Name: "context", Usage: "Application context name"},
			&cli.StringFlag{Name: "http-addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-addr", Usage: "Replication listen address"},
			&cli.StringFlag{Name: "advertise-rpc-addr", Usage: "Replication address announced to peers"},
			&cli.StringFlag{Name: "gossip-addr", Usage: "Gossip bind address"},
			&cli.IntFlag{Name: "gossip-port", Usage: "Gossip bind port"},
			&cli.StringSliceFlag{Name: "seed", Usage: "Gossip address of an existing member (repeatable)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"), flagOverrides(c))
		},
	}
}

// flagOverrides maps the flags given on the command line to config keys.
// Unset flags are left out so file and environment values survive.
func flagOverrides(c *cli.Context) map[string]any {
	keys := map[string]string{
		"node-id":            "node.id",
		"context":            "node.context_name",
		"http-addr":          "server.http.addr",
		"rpc-addr":           "cluster.rpc_addr",
		"advertise-rpc-addr": "cluster.advertise_rpc_addr",
		"gossip-addr":        "cluster.gossip_addr",
		"log-level":          "log.level",
	}
	out := make(map[string]any)
	for flag, key := range keys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	if c.IsSet("gossip-port") {
		out["cluster.gossip_port"] = c.Int("gossip-port")
	}
	if c.IsSet("seed") {
		out["cluster.seeds"] = c.StringSlice("seed")
	}
	return out
}
