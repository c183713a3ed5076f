package command

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/deltamesh-go/internal/core/replication"
	"github.com/yndnr/deltamesh-go/internal/core/service"
	"github.com/yndnr/deltamesh-go/internal/server/httpserver"
	"github.com/yndnr/deltamesh-go/internal/storage/memory"
)

// noPeers is a cluster with nobody else in it.
type noPeers struct{}

func (noPeers) Send(context.Context, *replication.Message) error { return nil }
func (noPeers) SendTo(context.Context, *replication.Message, replication.Member, replication.SendOptions) error {
	return nil
}
func (noPeers) Members() []replication.Member { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newNode serves a single-node HTTP API backed by a real manager.
func newNode(t *testing.T, start bool) (*httptest.Server, *replication.DeltaManager) {
	t.Helper()
	sessions := service.NewSessionService(memory.New(), service.Config{SessionTimeout: -1, Logger: discardLogger()})
	cfg := replication.DefaultConfig()
	cfg.Name = "shop"
	cfg.Logger = discardLogger()
	m, err := replication.New(cfg, sessions, noPeers{})
	if err != nil {
		t.Fatalf("replication.New() error = %v", err)
	}
	if start {
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		t.Cleanup(func() { _ = m.Stop(context.Background()) })
	}

	srv := httptest.NewServer(httpserver.NewRouter(&httpserver.RouterConfig{
		Manager: m,
		Logger:  discardLogger(),
	}))
	t.Cleanup(srv.Close)
	return srv, m
}

// cliRun is one invocation of the CLI.
type cliRun struct {
	stdin  string
	config string
	server string
}

// run executes the app with args and returns what it printed.
func (r cliRun) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(r.stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	cfgPath := r.config
	if cfgPath == "" {
		cfgPath = filepath.Join(t.TempDir(), "cli.yaml")
	}
	full := []string{"deltamesh-cli", "--config", cfgPath}
	if r.server != "" {
		full = append(full, "--server", r.server)
	}
	err := app.Run(append(full, args...))
	return stdout.String(), err
}

// mustRun fails the test when the command errors.
func (r cliRun) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := r.run(t, args...)
	if err != nil {
		t.Fatalf("%v: error = %v\noutput:\n%s", args, err, out)
	}
	return out
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}
