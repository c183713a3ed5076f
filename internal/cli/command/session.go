package command

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/deltamesh-go/internal/cli/connection"
	"github.com/yndnr/deltamesh-go/internal/cli/output"
)

// sessionView mirrors the server's session representation.
type sessionView struct {
	ID                 string            `json:"id"`
	Primary            bool              `json:"primary"`
	Valid              bool              `json:"valid"`
	CreatedAt          time.Time         `json:"created_at"`
	LastAccessedAt     time.Time         `json:"last_accessed_at"`
	MaxInactiveSeconds int64             `json:"max_inactive_seconds" table:"wide"`
	Attributes         map[string]string `json:"attributes,omitempty" table:"wide"`
}

type sessionList struct {
	Items []sessionView `json:"items"`
	Total int           `json:"total"`
}

type rotateResult struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Manage sessions on the node",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List sessions",
				Action:  sessionListAction,
			},
			{
				Name:      "get",
				Usage:     "Show a session and its attributes",
				ArgsUsage: "SESSION_ID",
				Action:    sessionGet,
			},
			{
				Name:      "create",
				Usage:     "Create a session (ID generated when omitted)",
				ArgsUsage: "[SESSION_ID]",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "max-inactive",
						Aliases: []string{"t"},
						Usage:   "Idle timeout; negative never expires",
					},
					&cli.StringSliceFlag{
						Name:    "attr",
						Aliases: []string{"a"},
						Usage:   "Attribute as NAME=VALUE (repeatable)",
					},
				},
				Action: sessionCreate,
			},
			{
				Name:      "set",
				Usage:     "Set a session attribute",
				ArgsUsage: "SESSION_ID NAME VALUE",
				Action:    sessionSet,
			},
			{
				Name:      "unset",
				Usage:     "Remove a session attribute",
				ArgsUsage: "SESSION_ID NAME",
				Action:    sessionUnset,
			},
			{
				Name:      "rotate",
				Usage:     "Give a session a new ID",
				ArgsUsage: "SESSION_ID",
				Action:    sessionRotate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"invalidate"},
				Usage:     "Invalidate a session across the cluster",
				ArgsUsage: "SESSION_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: sessionDelete,
			},
		},
	}
}

func sessionPath(id string, rest ...string) string {
	p := "/sessions/" + connection.PathEscape(id)
	for _, r := range rest {
		p += "/" + connection.PathEscape(r)
	}
	return p
}

func sessionListAction(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	var result sessionList
	if err := client.Get(c.Context, "/sessions", &result); err != nil {
		return err
	}
	if !isTable(c) {
		return render(c, result)
	}
	if err := render(c, result.Items); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "\nTotal: %d sessions\n", result.Total)
	return nil
}

func sessionGet(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	var s sessionView
	if err := client.Get(c.Context, sessionPath(c.Args().First()), &s); err != nil {
		return err
	}
	return renderSession(c, s)
}

// renderSession shows the session fields, then its attributes as their
// own table when people read the output.
func renderSession(c *cli.Context, s sessionView) error {
	if !isTable(c) {
		return render(c, s)
	}
	if err := render(c, s); err != nil {
		return err
	}
	if len(s.Attributes) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Attributes))
	for name := range s.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	table := &output.Table{Headers: []string{"ATTRIBUTE", "VALUE"}}
	for _, name := range names {
		table.AddRow(name, s.Attributes[name])
	}
	fmt.Fprintln(stdout(c))
	return table.Render(stdout(c))
}

func sessionCreate(c *cli.Context) error {
	if c.NArg() > 1 {
		return requireArgs(c, 1)
	}
	body := map[string]any{}
	if id := c.Args().First(); id != "" {
		body["id"] = id
	}
	if c.IsSet("max-inactive") {
		secs := int64(c.Duration("max-inactive") / time.Second)
		if c.Duration("max-inactive") < 0 {
			secs = -1
		}
		body["max_inactive_seconds"] = secs
	}
	if pairs := c.StringSlice("attr"); len(pairs) > 0 {
		attrs, err := parseAttributes(pairs)
		if err != nil {
			return err
		}
		body["attributes"] = attrs
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	var s sessionView
	if err := client.Post(c.Context, "/sessions", body, &s); err != nil {
		return err
	}
	if isTable(c) {
		fmt.Fprintf(stdout(c), "Session %s created.\n", s.ID)
		return nil
	}
	return render(c, s)
}

// parseAttributes splits NAME=VALUE pairs. Values may contain '='.
func parseAttributes(pairs []string) (map[string]string, error) {
	attrs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid attribute %q: want NAME=VALUE", p)
		}
		attrs[name] = value
	}
	return attrs, nil
}

func sessionSet(c *cli.Context) error {
	if err := requireArgs(c, 3); err != nil {
		return err
	}
	id, name, value := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
	client, err := newClient(c)
	if err != nil {
		return err
	}
	var s sessionView
	body := map[string]string{"value": value}
	if err := client.Put(c.Context, sessionPath(id, "attributes", name), body, &s); err != nil {
		return err
	}
	if isTable(c) {
		fmt.Fprintf(stdout(c), "Attribute %q set on session %s.\n", name, id)
		return nil
	}
	return render(c, s)
}

func sessionUnset(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	id, name := c.Args().Get(0), c.Args().Get(1)
	client, err := newClient(c)
	if err != nil {
		return err
	}
	var s sessionView
	if err := client.Delete(c.Context, sessionPath(id, "attributes", name), &s); err != nil {
		return err
	}
	if isTable(c) {
		fmt.Fprintf(stdout(c), "Attribute %q removed from session %s.\n", name, id)
		return nil
	}
	return render(c, s)
}

func sessionRotate(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	var result rotateResult
	if err := client.Post(c.Context, sessionPath(c.Args().First(), "rotate"), nil, &result); err != nil {
		return err
	}
	if isTable(c) {
		fmt.Fprintf(stdout(c), "Session %s is now %s.\n", result.OldID, result.NewID)
		return nil
	}
	return render(c, result)
}

func sessionDelete(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	id := c.Args().First()
	if !c.Bool("force") && !confirm(c, fmt.Sprintf("Invalidate session %q on every node? [y/N]: ", id)) {
		fmt.Fprintln(stdout(c), "Cancelled.")
		return nil
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	if err := client.Delete(c.Context, sessionPath(id), nil); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Session %s invalidated.\n", id)
	return nil
}

// confirm asks a yes/no question on the app's reader.
func confirm(c *cli.Context, prompt string) bool {
	fmt.Fprint(stdout(c), prompt)
	if c.App == nil || c.App.Reader == nil {
		return false
	}
	line, _ := bufio.NewReader(c.App.Reader).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
