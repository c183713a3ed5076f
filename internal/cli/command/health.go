package command

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/deltamesh-go/internal/cli/connection"
)

// HealthCommand checks whether the node is alive or ready.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server liveness, or readiness with --ready",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "ready",
				Usage: "Require the node to have finished its state transfer",
			},
		},
		Action: health,
	}
}

func health(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	path := "/health"
	if c.Bool("ready") {
		path = "/ready"
	}

	var result map[string]string
	err = client.Get(c.Context, path, &result)
	var apiErr *connection.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return cli.Exit(fmt.Sprintf("%s: not ready", client.BaseURL()), 2)
	}
	if err != nil {
		return err
	}
	if !isTable(c) {
		return render(c, result)
	}
	fmt.Fprintf(stdout(c), "%s: %s", client.BaseURL(), result["status"])
	if state := result["state"]; state != "" {
		fmt.Fprintf(stdout(c), " (%s)", state)
	}
	fmt.Fprintln(stdout(c))
	return nil
}
