package command

import (
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/deltamesh-go/internal/cli/output"
)

type statsView struct {
	Since              time.Time        `json:"since"`
	Enabled            bool             `json:"enabled"`
	Sent               map[string]int64 `json:"sent"`
	Received           map[string]int64 `json:"received"`
	NoStateTransferred int64            `json:"no_state_transferred"`
	SessionReplaced    int64            `json:"session_replaced"`
}

type stateView struct {
	Context           string   `json:"context"`
	State             string   `json:"state"`
	StateTransferred  bool     `json:"state_transferred"`
	NoContextManager  bool     `json:"no_context_manager"`
	ReceivedQueueSize int      `json:"received_queue_size"`
	Members           []string `json:"members"`
}

// stateAwaiting is the transfer state while the startup handshake runs.
const stateAwaiting = "awaiting_transfer"

// ReplicationCommand returns the replication subcommand group.
func ReplicationCommand() *cli.Command {
	return &cli.Command{
		Name:    "replication",
		Aliases: []string{"repl"},
		Usage:   "Inspect session replication",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show message counters per event type",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Zero the counters after reading them",
					},
				},
				Action: replicationStats,
			},
			{
				Name:  "state",
				Usage: "Show state-transfer status and peers",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "wait",
						Usage: "Poll until the state transfer finished, up to this long",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Polling interval for --wait",
						Value: 500 * time.Millisecond,
					},
				},
				Action: replicationState,
			},
		},
	}
}

func replicationStats(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	var stats statsView
	if c.Bool("reset") {
		err = client.Post(c.Context, "/admin/v1/replication/stats/reset", nil, &stats)
	} else {
		err = client.Get(c.Context, "/admin/v1/replication/stats", &stats)
	}
	if err != nil {
		return err
	}
	if !isTable(c) {
		return render(c, stats)
	}

	w := stdout(c)
	fmt.Fprintf(w, "Collecting: %t   Since: %s\n\n", stats.Enabled, stats.Since.Local().Format(output.TimeLayout))
	if err := eventTable(stats).Render(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nNo state transferred: %d\n", stats.NoStateTransferred)
	fmt.Fprintf(w, "Sessions replaced:    %d\n", stats.SessionReplaced)
	if c.Bool("reset") {
		fmt.Fprintln(w, "\nCounters reset.")
	}
	return nil
}

// eventTable lists the sent and received counts of every event type.
func eventTable(stats statsView) *output.Table {
	seen := make(map[string]struct{})
	for name := range stats.Sent {
		seen[name] = struct{}{}
	}
	for name := range stats.Received {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	table := &output.Table{Headers: []string{"EVENT", "SENT", "RECEIVED"}}
	for _, name := range names {
		table.AddRow(name, fmt.Sprint(stats.Sent[name]), fmt.Sprint(stats.Received[name]))
	}
	return table
}

func replicationState(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}

	var state stateView
	if err := client.Get(c.Context, "/admin/v1/replication/state", &state); err != nil {
		return err
	}

	if wait := c.Duration("wait"); wait > 0 && state.State == stateAwaiting {
		spinner := output.NewSpinner(stderr(c), "waiting for state transfer")
		spinner.Start()
		deadline := time.Now().Add(wait)
		ticker := time.NewTicker(c.Duration("interval"))
		defer ticker.Stop()
		for state.State == stateAwaiting {
			if time.Now().After(deadline) {
				spinner.Fail("state transfer still running")
				return fmt.Errorf("state transfer not finished after %s", wait)
			}
			select {
			case <-c.Context.Done():
				spinner.Stop()
				return c.Context.Err()
			case <-ticker.C:
			}
			if err := client.Get(c.Context, "/admin/v1/replication/state", &state); err != nil {
				spinner.Stop()
				return err
			}
		}
		spinner.Success("state transfer " + state.State)
	}

	if !isTable(c) {
		return render(c, state)
	}
	if err := render(c, state); err != nil {
		return err
	}
	if len(state.Members) > 0 {
		table := &output.Table{Headers: []string{"MEMBER"}}
		for _, m := range state.Members {
			table.AddRow(m)
		}
		fmt.Fprintln(stdout(c))
		return table.Render(stdout(c))
	}
	return nil
}
