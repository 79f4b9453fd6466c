package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/baaaaaaaka/tunneler/internal/config"
	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

const testYAML = `common:
  default_user: deploy
tunnels:
  db:
    server: bastion
    host: db.internal
    remote_port: 5432
    local_port: 15432
  web:
    server: bastion
    remote_port: 8080
    local_port: 18080
groups:
  all:
    - db
    - web
`

type fakePID int

func (p fakePID) PID() int { return int(p) }

// fakeHost stands in for the ssh inspector and controller: Start records a
// running forward and Stop removes it.
type fakeHost struct {
	mu      sync.Mutex
	procs   []tunnel.Observed
	nextPID int
	failOn  map[int]bool
	started []tunnel.Params
	stopped []int
}

func (h *fakeHost) ListActive(context.Context) ([]tunnel.Observed, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]tunnel.Observed(nil), h.procs...), nil
}

func (h *fakeHost) Start(_ context.Context, p tunnel.Params) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, p)
	if h.failOn[p.LocalPort] {
		return false
	}
	h.nextPID++
	h.procs = append(h.procs, tunnel.Observed{
		Handle:     fakePID(1000 + h.nextPID),
		LocalPort:  p.LocalPort,
		Host:       p.Host,
		RemotePort: p.RemotePort,
		User:       p.User,
		Server:     p.Server,
	})
	return true
}

func (h *fakeHost) Stop(_ context.Context, hd tunnel.Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = append(h.stopped, hd.PID())
	for i, o := range h.procs {
		if o.PID() == hd.PID() {
			h.procs = append(h.procs[:i], h.procs[i+1:]...)
			return true
		}
	}
	return false
}

func (h *fakeHost) add(o tunnel.Observed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextPID++
	o.Handle = fakePID(1000 + h.nextPID)
	h.procs = append(h.procs, o)
}

func (h *fakeHost) startedPorts() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, 0, len(h.started))
	for _, p := range h.started {
		out = append(out, p.LocalPort)
	}
	sort.Ints(out)
	return out
}

// installFakes swaps the process hooks for host and isolates settings from
// the caller's environment.
func installFakes(t *testing.T, host *fakeHost) {
	t.Helper()
	prevSettings, prevInspector, prevController := loadSettings, newInspector, newController
	t.Cleanup(func() {
		loadSettings, newInspector, newController = prevSettings, prevInspector, prevController
	})

	loadSettings = func() (config.Settings, error) {
		return config.Settings{SSHBinary: "ssh", Workers: tunnel.DefaultWorkers}, nil
	}
	newInspector = func(zerolog.Logger) tunnel.Inspector { return host }
	newController = func(controllerOptions) tunnel.Controller { return host }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tunnels.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
